package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("IMPORT_BUCKET", "import-bucket")
	t.Setenv("CATALOG_ITEMS_QUEUE_URL", "http://localhost:4566/000000000000/catalogItemsQueue")
	t.Setenv("UPLOAD_EVENTS_QUEUE_URL", "http://localhost:4566/000000000000/uploadEventsQueue")
	t.Setenv("AWS_USE_SECRETS", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8085", cfg.Port)
	assert.Equal(t, "uploaded/", cfg.ImportPrefix)
	assert.Equal(t, 3600, cfg.UploadURLExpiresSec)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.Equal(t, 600, cfg.ImportTimeoutSec)
	assert.Equal(t, 900, cfg.VisibilityTimeoutSec)
}

func TestLoadConfig_Validation(t *testing.T) {
	setRequired(t)
	t.Setenv("IMPORT_BUCKET", "")
	_, err := LoadConfig(context.Background())
	assert.ErrorContains(t, err, "IMPORT_BUCKET")

	setRequired(t)
	t.Setenv("UPLOAD_URL_EXPIRES_SECONDS", "soon")
	_, err = LoadConfig(context.Background())
	assert.Error(t, err)

	setRequired(t)
	t.Setenv("UPLOAD_URL_EXPIRES_SECONDS", "")
	t.Setenv("BASIC_AUTH_USERNAME", "admin")
	t.Setenv("BASIC_AUTH_PASSWORD", "")
	_, err = LoadConfig(context.Background())
	assert.ErrorContains(t, err, "BASIC_AUTH_PASSWORD")
}

func TestLoadConfig_NormalizesPrefix(t *testing.T) {
	setRequired(t)
	t.Setenv("IMPORT_PREFIX", "incoming")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "incoming/", cfg.ImportPrefix)
}

func TestLoadConfig_VisibilityMustCoverImport(t *testing.T) {
	setRequired(t)
	t.Setenv("IMPORT_TIMEOUT_SECONDS", "300")
	t.Setenv("QUEUE_VISIBILITY_TIMEOUT_SECONDS", "120")
	_, err := LoadConfig(context.Background())
	assert.ErrorContains(t, err, "QUEUE_VISIBILITY_TIMEOUT_SECONDS")

	t.Setenv("QUEUE_VISIBILITY_TIMEOUT_SECONDS", "300")
	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.VisibilityTimeoutSec)

	t.Setenv("IMPORT_TIMEOUT_SECONDS", "0")
	_, err = LoadConfig(context.Background())
	assert.ErrorContains(t, err, "IMPORT_TIMEOUT_SECONDS")

	t.Setenv("IMPORT_TIMEOUT_SECONDS", "")
	t.Setenv("QUEUE_VISIBILITY_TIMEOUT_SECONDS", "50000")
	_, err = LoadConfig(context.Background())
	assert.ErrorContains(t, err, "QUEUE_VISIBILITY_TIMEOUT_SECONDS")
}
