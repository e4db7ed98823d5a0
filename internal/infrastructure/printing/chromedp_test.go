package printing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpRendererDefaults(t *testing.T) {
	r, err := NewChromedpRenderer(nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, defaultRenderTimeout, r.config.RenderTimeout)
	assert.NotNil(t, r.logger)
	assert.NotNil(t, r.allocCtx)
}

func TestNewChromedpRendererRemoteAllocator(t *testing.T) {
	r, err := NewChromedpRenderer(&ChromedpConfig{
		RemoteURL:     "ws://localhost:9222",
		RenderTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 5*time.Second, r.config.RenderTimeout)
}

func TestRenderRejectsEmptyDocument(t *testing.T) {
	r, err := NewChromedpRenderer(nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Render(context.Background(), "empty", "   ")
	require.Error(t, err)

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeEmptyDocument, renderErr.Code)
}

func TestCompleteDocument(t *testing.T) {
	t.Run("wraps bare fragment", func(t *testing.T) {
		doc := completeDocument("Report", "<p>hello</p>")
		assert.Contains(t, doc, "<!DOCTYPE html>")
		assert.Contains(t, doc, "<title>Report</title>")
		assert.Contains(t, doc, "<p>hello</p>")
	})

	t.Run("passes full document through", func(t *testing.T) {
		full := "<!DOCTYPE html><html><body>x</body></html>"
		assert.Equal(t, full, completeDocument("ignored", full))
	})

	t.Run("omits empty title", func(t *testing.T) {
		doc := completeDocument("", "<p>x</p>")
		assert.NotContains(t, doc, "<title>")
	})
}
