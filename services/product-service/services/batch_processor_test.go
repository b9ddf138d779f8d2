package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRepo struct {
	products map[uuid.UUID]models.Product
	stocks   map[uuid.UUID]models.Stock
	calls    int
	// failOn makes the nth call (one based) fail.
	failOn int
	err    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: map[uuid.UUID]models.Product{}, stocks: map[uuid.UUID]models.Stock{}}
}

func (f *fakeRepo) CreateWithStock(_ context.Context, p models.Product, s models.Stock) error {
	f.calls++
	if f.calls == f.failOn {
		return f.err
	}
	f.products[p.ID] = p
	f.stocks[s.ProductID] = s
	return nil
}

type published struct {
	topic string
	body  []byte
	attrs map[string]awspkg.MessageAttribute
}

type fakeSNS struct {
	messages []published
	err      error
}

func (f *fakeSNS) Publish(_ context.Context, topic string, body []byte, attrs map[string]awspkg.MessageAttribute) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic: topic, body: body, attrs: attrs})
	return nil
}

type countingCache struct{ calls int }

func (c *countingCache) InvalidateProducts(context.Context) error {
	c.calls++
	return nil
}

const topic = "arn:aws:sns:us-east-1:000000000000:createProductTopic"

type harness struct {
	repo      *fakeRepo
	sns       *fakeSNS
	cache     *countingCache
	processor *BatchProcessor
}

func newHarness() *harness {
	h := &harness{repo: newFakeRepo(), sns: &fakeSNS{}, cache: &countingCache{}}
	h.processor = NewBatchProcessor(NewCommitWriter(h.repo), NewCompletionNotifier(h.sns, topic), h.cache, nil, zap.NewNop())
	return h
}

func msg(id, body string) awspkg.Message {
	return awspkg.Message{ID: id, Body: body, ReceiptHandle: "rh-" + id}
}

func TestProcessDelivery_KeyboardScenario(t *testing.T) {
	h := newHarness()

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"Keyboard","price":"159.99","count":"20"}`),
	})
	require.NoError(t, err)
	require.Len(t, result.Committed, 1)

	created := result.Committed[0]
	assert.Equal(t, models.Product{ID: created.ID, Title: "Keyboard", Description: "No description provided", Price: 159.99}, h.repo.products[created.ID])
	assert.Equal(t, models.Stock{ProductID: created.ID, Count: 20}, h.repo.stocks[created.ID])

	require.Len(t, h.sns.messages, 1)
	var event models.NotificationEvent
	require.NoError(t, json.Unmarshal(h.sns.messages[0].body, &event))
	assert.Equal(t, created.ID.String(), event.ProductID)
	assert.Equal(t, topic, h.sns.messages[0].topic)
	assert.Equal(t, 1, h.cache.calls)
}

func TestProcessDelivery_MissingFieldsSkipped(t *testing.T) {
	h := newHarness()

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{msg("1", `{"title":"Mouse"}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, h.repo.calls)
	assert.Empty(t, h.sns.messages)
	assert.Zero(t, h.cache.calls)
}

func TestProcessDelivery_MalformedSiblingDoesNotBlockOthers(t *testing.T) {
	h := newHarness()

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"Lamp","price":"12.5","count":"3"}`),
		msg("2", `{"title":"Broken","price":"abc","count":"1"}`),
		msg("3", `{"title":"Desk","price":300,"count":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Committed, 2)

	var titles []string
	for _, p := range h.repo.products {
		titles = append(titles, p.Title)
	}
	assert.ElementsMatch(t, []string{"Lamp", "Desk"}, titles)
}

func TestProcessDelivery_RedeliveredInvalidMessageIsSkippedAgain(t *testing.T) {
	h := newHarness()
	bad := msg("1", `{"title":"Keyboard","price":"abc","count":"20"}`)

	for i := 0; i < 3; i++ {
		result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{bad})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
	}
	assert.Zero(t, h.repo.calls)
}

func TestProcessDelivery_NotificationPairsWithCommit(t *testing.T) {
	h := newHarness()

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"A","price":"1.5","count":"1"}`),
		msg("2", `{"title":"B","price":"2","count":"7"}`),
		msg("3", `{"title":"C","price":"99.99","count":"0"}`),
	})
	require.NoError(t, err)
	require.Len(t, h.sns.messages, len(h.repo.products))

	seen := map[string]int{}
	for _, m := range h.sns.messages {
		var event models.NotificationEvent
		require.NoError(t, json.Unmarshal(m.body, &event))
		id := uuid.MustParse(event.ProductID)
		seen[event.ProductID]++

		assert.Equal(t, h.repo.stocks[id].Count, event.Count)
		assert.Equal(t, "Number", m.attrs["price"].DataType)
		assert.Equal(t, awspkg.NumberAttribute(h.repo.products[id].Price), m.attrs["price"])
	}
	for _, p := range result.Committed {
		assert.Equal(t, 1, seen[p.ID.String()])
	}
}

func TestProcessDelivery_CommitFailurePropagates(t *testing.T) {
	h := newHarness()
	h.repo.failOn = 2
	h.repo.err = errors.New("ThrottlingException")

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"A","price":"1","count":"1"}`),
		msg("2", `{"title":"B","price":"2","count":"2"}`),
		msg("3", `{"title":"C","price":"3","count":"3"}`),
	})

	var cerr *apperrors.CommitError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "message 2")
	// siblings on either side of the failure are still committed
	assert.Equal(t, 3, h.repo.calls)
	assert.Len(t, result.Committed, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, h.sns.messages, 2)
	assert.Equal(t, 1, h.cache.calls)
}

func TestProcessDelivery_NotifyFailurePropagates(t *testing.T) {
	h := newHarness()
	h.sns.err = errors.New("AuthorizationError")

	result, err := h.processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"A","price":"1","count":"1"}`),
	})

	var nerr *apperrors.NotifyError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Len(t, h.repo.products, 1)
	assert.Empty(t, result.Committed)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, h.cache.calls)
}

func TestProcessDelivery_RedeliveryAfterFailureCreatesNewProduct(t *testing.T) {
	h := newHarness()
	h.sns.err = errors.New("timeout")
	delivery := []awspkg.Message{msg("1", `{"title":"A","price":"1","count":"1"}`)}

	_, err := h.processor.ProcessDelivery(context.Background(), delivery)
	require.Error(t, err)

	h.sns.err = nil
	_, err = h.processor.ProcessDelivery(context.Background(), delivery)
	require.NoError(t, err)

	// at-least-once: the retried row is stored a second time under a new id
	assert.Len(t, h.repo.products, 2)
}

func TestProcessDelivery_StopsWhenDeliveryTimesOut(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.processor.ProcessDelivery(ctx, []awspkg.Message{
		msg("1", `{"title":"A","price":"1","count":"1"}`),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.repo.calls)
	assert.Empty(t, result.Committed)
}

// plainErrCommitter fails titles in fail with an error that carries no
// commit classification and delegates the rest.
type plainErrCommitter struct {
	next Committer
	fail map[string]error
}

func (c plainErrCommitter) Commit(ctx context.Context, p models.NewProduct) (*models.ProductWithStock, error) {
	if err, ok := c.fail[p.Title]; ok {
		return nil, err
	}
	return c.next.Commit(ctx, p)
}

func TestProcessDelivery_UnclassifiedErrorIsLoggedAndPropagated(t *testing.T) {
	h := newHarness()
	core, logs := observer.New(zap.InfoLevel)
	boom := errors.New("nil map write")
	committer := plainErrCommitter{next: NewCommitWriter(h.repo), fail: map[string]error{"B": boom}}
	processor := NewBatchProcessor(committer, NewCompletionNotifier(h.sns, topic), h.cache, nil, zap.New(core))

	result, err := processor.ProcessDelivery(context.Background(), []awspkg.Message{
		msg("1", `{"title":"A","price":"1","count":"1"}`),
		msg("2", `{"title":"B","price":"2","count":"2"}`),
		msg("3", `{"title":"C","price":"3","count":"3"}`),
	})

	require.ErrorIs(t, err, boom)
	assert.False(t, apperrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "message 2")
	assert.Len(t, result.Committed, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Skipped)
	assert.Len(t, h.sns.messages, 2)

	unclassified := logs.FilterMessage("catalog item failed with unclassified error").All()
	require.Len(t, unclassified, 1)
	assert.Equal(t, zap.ErrorLevel, unclassified[0].Level)
	assert.Equal(t, "2", unclassified[0].ContextMap()["message_id"])
	assert.Zero(t, logs.FilterMessage("catalog item failed").Len())
}
