package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
)

func TestCommitWriter_AssignsFreshIDs(t *testing.T) {
	repo := newFakeRepo()
	w := NewCommitWriter(repo)
	p := models.NewProduct{Title: "A", Description: "d", Price: 1, Count: 2}

	first, err := w.Commit(context.Background(), p)
	require.NoError(t, err)
	second, err := w.Commit(context.Background(), p)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, first.ID, repo.stocks[first.ID].ProductID)
}

func TestCommitWriter_WrapsStoreErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.failOn = 1
	repo.err = fmt.Errorf("transaction canceled: %w", &smithy.GenericAPIError{Code: "TransactionCanceledException"})

	_, err := NewCommitWriter(repo).Commit(context.Background(), models.NewProduct{Title: "A", Price: 1})

	var cerr *apperrors.CommitError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "TransactionCanceledException", cerr.Code)
}
