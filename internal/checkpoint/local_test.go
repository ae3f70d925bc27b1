package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FFD-Group/Tidio-Products/internal/batch"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

func testManifest() *batch.Manifest {
	price := 42.00
	products := []domain.Product{
		{ID: "1", SKU: "A", Title: "Widget", Price: &price},
		{ID: "2", SKU: "B", Title: "Gadget"},
		{ID: "3", SKU: "C", Title: "Gizmo"},
	}
	return batch.New(products, 2, domain.SyncFull)
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewFileStore(path)

	m := testManifest()
	require.NoError(t, m.MarkSent(0, time.Now()))

	require.NoError(t, store.Save(m))

	got, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, m.Meta, got.Meta)
	require.Len(t, got.Batches, 2)
	assert.Equal(t, batch.StatusSent, got.Batches[0].Status)
	assert.Equal(t, batch.StatusPending, got.Batches[1].Status)
	assert.Equal(t, m.Batches[0].Products, got.Batches[0].Products)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewFileStore(path)

	m := testManifest()
	require.NoError(t, store.Save(m))

	require.NoError(t, m.MarkSent(1, time.Now()))
	require.NoError(t, store.Save(m))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, batch.StatusSent, got.Batches[1].Status)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "manifest.json"))

	require.NoError(t, store.Save(testManifest()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.json", entries[0].Name())
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	_, err := store.Load()
	assert.Error(t, err)
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}
