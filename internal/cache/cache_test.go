package cache

import (
	"context"
	stdErrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

type countingAnalyzer struct {
	calls  int
	closed int
	err    error
}

func (c *countingAnalyzer) Analyze(_ context.Context, image []byte) (*providers.Analysis, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &providers.Analysis{Caption: "caption of " + string(image), Confidence: 0.5}, nil
}

func (c *countingAnalyzer) Name() string { return "fake" }

func (c *countingAnalyzer) Close() error {
	c.closed++
	return nil
}

func openTestDB(t *testing.T) *CacheDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCacheDB_GetPut(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.Get("azure", "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Put("azure", "abc", Entry{Caption: "a red door", Confidence: 0.9}))
	got, ok, err := db.Get("azure", "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a red door", got.Caption)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	_, ok, err = db.Get("ollama", "abc")
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped by provider")
}

func TestCacheDB_Expired(t *testing.T) {
	db := openTestDB(t)
	db.SetTTL(time.Hour)

	require.NoError(t, db.Put("azure", "old", Entry{Caption: "stale", CachedAt: time.Now().Add(-2 * time.Hour)}))
	_, ok, err := db.Get("azure", "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnalyzer_HitSkipsProvider(t *testing.T) {
	db := openTestDB(t)
	inner := &countingAnalyzer{}
	a := Wrap(inner, db)

	first, err := a.Analyze(t.Context(), []byte("p1"))
	require.NoError(t, err)
	second, err := a.Analyze(t.Context(), []byte("p1"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Caption, second.Caption)
	assert.Equal(t, "fake", a.Name())

	require.NoError(t, a.Close())
	assert.Equal(t, 1, inner.closed)
}

func TestAnalyzer_ErrorsAreNotCached(t *testing.T) {
	db := openTestDB(t)
	inner := &countingAnalyzer{err: stdErrors.New("boom")}
	a := Wrap(inner, db)

	_, err := a.Analyze(t.Context(), []byte("p1"))
	require.Error(t, err)
	_, err = a.Analyze(t.Context(), []byte("p1"))
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}
