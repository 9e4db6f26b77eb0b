package knowledge

// Chunk 文档分块，摄取后只读
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ChunkStore 有序分块集合，顺序与向量索引的行号一一对应
type ChunkStore struct {
	chunks []Chunk
}

// NewChunkStore 创建空的分块集合
func NewChunkStore() *ChunkStore {
	return &ChunkStore{}
}

// Append 追加一个分块
func (s *ChunkStore) Append(c Chunk) {
	s.chunks = append(s.chunks, c)
}

// Get 按行号取分块；越界返回零值与false
func (s *ChunkStore) Get(row int) (Chunk, bool) {
	if row < 0 || row >= len(s.chunks) {
		return Chunk{}, false
	}
	return s.chunks[row], true
}

// Size 返回分块数量
func (s *ChunkStore) Size() int {
	return len(s.chunks)
}

// All 返回全部分块（内部切片，调用方不应修改）
func (s *ChunkStore) All() []Chunk {
	return s.chunks
}

// Sources 返回去重后的来源文件列表，保持首次出现顺序
func (s *ChunkStore) Sources() []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, c := range s.chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	return sources
}
