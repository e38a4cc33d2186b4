package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	m := Manifest{
		IndexID:        "doc",
		EmbeddingModel: "all-minilm",
		Dimensions:     2,
		Count:          4,
		CreatedAt:      time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, m, testEntries()))

	assert.FileExists(t, filepath.Join(dir, "doc", "manifest.json"))
	assert.FileExists(t, filepath.Join(dir, "doc", "entries.jsonl"))

	h, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, m, h.Manifest())

	hits, err := h.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, testEntries()[1], hits[0].Entry)
}

func TestFileStoreReplace(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Manifest{IndexID: "doc", Dimensions: 2, Count: 4}, testEntries()))
	require.NoError(t, store.Save(ctx, Manifest{IndexID: "doc", Dimensions: 2, Count: 1}, testEntries()[:1]))

	h, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Manifest().Count)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".doc.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreLoadDuringSwap(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, Manifest{IndexID: "doc", Dimensions: 2, Count: 4}, testEntries()))

	// a Save that has moved the previous copy aside but not yet moved in the new one
	retired := filepath.Join(dir, ".doc.tmp-42.old")
	require.NoError(t, os.Rename(filepath.Join(dir, "doc"), retired))

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(3 * swapDelay)
		assert.NoError(t, os.Rename(retired, filepath.Join(dir, "doc")))
	}()

	h, err := store.Load(ctx, "doc")
	<-done
	require.NoError(t, err)
	assert.Equal(t, 4, h.Manifest().Count)
}

func TestFileStoreNotFound(t *testing.T) {
	_, err := NewFileStore(t.TempDir()).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, Manifest{IndexID: "doc", Dimensions: 2, Count: 4}, testEntries()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc", "entries.jsonl"), []byte("{\"position\":0}\n"), 0o644))
	_, err := store.Load(ctx, "doc")
	assert.ErrorContains(t, err, "corrupt")
}
