package knowledge

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
	"github.com/aihub/ragbot-go/internal/logger"
)

const (
	indexFileName    = "index.gob"
	metadataFileName = "chunks.json"
)

// indexBlob 向量索引的序列化形式
type indexBlob struct {
	Dim     int
	Vectors [][]float32
}

// snapshotMetadata 快照元数据，分块顺序必须与索引行号一致
type snapshotMetadata struct {
	Chunks         []Chunk  `json:"chunks"`
	Sources        []string `json:"sources"`
	EmbeddingModel string   `json:"embedding_model"`
	ChunkCount     int      `json:"chunk_count"`
}

// SaveSnapshot 将知识库写入目录下的索引blob与元数据JSON。
// 先写临时文件再重命名，避免留下半成品。
func SaveSnapshot(kb *KnowledgeBase, dir string) error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	blob := indexBlob{
		Dim:     kb.index.Dim(),
		Vectors: kb.index.Vectors(),
	}
	if err := writeGobAtomic(filepath.Join(dir, indexFileName), blob); err != nil {
		return fmt.Errorf("write index blob: %w", err)
	}

	meta := snapshotMetadata{
		Chunks:         kb.store.All(),
		Sources:        kb.store.Sources(),
		EmbeddingModel: kb.embeddingModel,
		ChunkCount:     kb.store.Size(),
	}
	if err := writeJSONAtomic(filepath.Join(dir, metadataFileName), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	logger.Info("知识库快照已保存",
		zap.String("dir", dir),
		zap.Int("chunks", meta.ChunkCount),
		zap.Int("dim", blob.Dim))

	return nil
}

// LoadSnapshot 从目录加载知识库。两个文件缺一不可，
// 且元数据分块数必须与索引行数一致。
func LoadSnapshot(dir string) (*KnowledgeBase, error) {
	indexPath := filepath.Join(dir, indexFileName)
	metadataPath := filepath.Join(dir, metadataFileName)

	if !fileExists(indexPath) || !fileExists(metadataPath) {
		return nil, apperrors.NewIndexNotLoadedError()
	}

	var blob indexBlob
	if err := readGob(indexPath, &blob); err != nil {
		return nil, fmt.Errorf("read index blob: %w", err)
	}

	var meta snapshotMetadata
	if err := readJSON(metadataPath, &meta); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	if len(meta.Chunks) != len(blob.Vectors) {
		return nil, fmt.Errorf("snapshot corrupt: %d chunks but %d vectors",
			len(meta.Chunks), len(blob.Vectors))
	}

	kb := NewKnowledgeBase(blob.Dim, meta.EmbeddingModel)
	for i, vec := range blob.Vectors {
		if err := kb.Add(meta.Chunks[i], vec); err != nil {
			return nil, fmt.Errorf("restore row %d: %w", i, err)
		}
	}

	logger.Info("知识库快照已加载",
		zap.String("dir", dir),
		zap.Int("chunks", kb.Size()),
		zap.Int("dim", blob.Dim),
		zap.String("embedding_model", meta.EmbeddingModel))

	return kb, nil
}

func writeGobAtomic(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeJSONAtomic(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
