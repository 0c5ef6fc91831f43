package session

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/internal/config"
	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
)

func newSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	out := new(bytes.Buffer)
	return New(cfg, testutil.NewTestLogger(t), output.NewRenderer(out, out, output.ModeText))
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	s := newSession(t, &config.Config{})
	ctx := WithSession(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
}

func TestCloseWithoutDataContext(t *testing.T) {
	s := newSession(t, &config.Config{})
	assert.NoError(t, s.Close())
}

func TestSaveSchemaRequiresOpenSource(t *testing.T) {
	s := newSession(t, &config.Config{})
	assert.Error(t, s.SaveSchema(t.TempDir()+"/schema.yaml"))
}

func TestDataContext_NoSource(t *testing.T) {
	s := newSession(t, &config.Config{})
	_, err := s.DataContext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestDataContext_OfflineMissingSnapshot(t *testing.T) {
	s := newSession(t, &config.Config{
		Offline:    true,
		SchemaFile: t.TempDir() + "/missing.yaml",
		Sources: map[string]config.SourceConfig{
			"shop": {Vendor: "sqlite", Connection: ":memory:"},
		},
	})
	_, err := s.DataContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}
