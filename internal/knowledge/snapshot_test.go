package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
)

func buildTestKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb := NewKnowledgeBase(3, "all-minilm")
	require.NoError(t, kb.Add(Chunk{Text: "vitiligo basics", Source: "guide.md"}, []float32{1, 0, 0}))
	require.NoError(t, kb.Add(Chunk{Text: "treatment options", Source: "guide.md"}, []float32{0, 1, 0}))
	require.NoError(t, kb.Add(Chunk{Text: "clinic locations", Source: "clinics.txt"}, []float32{0, 0, 1}))
	return kb
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kb := buildTestKB(t)

	require.NoError(t, SaveSnapshot(kb, dir))
	assert.FileExists(t, filepath.Join(dir, "index.gob"))
	assert.FileExists(t, filepath.Join(dir, "chunks.json"))

	loaded, err := LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, kb.Size(), loaded.Size())
	assert.Equal(t, kb.Dim(), loaded.Dim())
	assert.Equal(t, "all-minilm", loaded.EmbeddingModel())
	assert.Equal(t, []string{"guide.md", "clinics.txt"}, loaded.Sources())

	// 加载后的检索结果应与原库一致
	query := []float32{0, 1, 0}
	want, err := kb.Search(query, 3)
	require.NoError(t, err)
	got, err := loaded.Search(query, 3)
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Chunk, got[i].Chunk)
		assert.Equal(t, want[i].Row, got[i].Row)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
	}
}

func TestLoadSnapshotMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIndexNotLoaded))

	// 只有其中一个文件同样视为未加载
	kb := buildTestKB(t)
	require.NoError(t, SaveSnapshot(kb, dir))
	require.NoError(t, os.Remove(filepath.Join(dir, "chunks.json")))

	_, err = LoadSnapshot(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIndexNotLoaded))
}

func TestLoadSnapshotCountMismatch(t *testing.T) {
	dir := t.TempDir()
	kb := buildTestKB(t)
	require.NoError(t, SaveSnapshot(kb, dir))

	// 篡改元数据使分块数与向量数不一致
	metaPath := filepath.Join(dir, "chunks.json")
	meta := `{"chunks":[{"text":"only one","source":"x"}],"sources":["x"],"embedding_model":"all-minilm","chunk_count":1}`
	require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0o644))

	_, err := LoadSnapshot(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot corrupt")
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	dir := t.TempDir()
	kb := buildTestKB(t)
	require.NoError(t, SaveSnapshot(kb, dir))

	require.NoError(t, kb.Add(Chunk{Text: "new entry", Source: "extra.txt"}, []float32{1, 1, 0}))
	require.NoError(t, SaveSnapshot(kb, dir))

	loaded, err := LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Size())
}
