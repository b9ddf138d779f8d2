package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeed_DryRunCountsValidRows(t *testing.T) {
	csv := "title,description,price,count\n" +
		"Keyboard,Mechanical,49.99,10\n" +
		"Mouse,,abc,3\n" +
		"Monitor,,199,\n" +
		"Cable,USB-C,5,0\n"

	s, err := seed(context.Background(), strings.NewReader(csv), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, s.created)
	assert.Equal(t, 2, s.skipped)
	assert.Zero(t, s.failed)
}
