package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkTextWindowAndOverlap(t *testing.T) {
	chunks := ChunkText(words(10), 4, 2)
	require.Len(t, chunks, 4)
	assert.Equal(t, "w0 w1 w2 w3", chunks[0])
	assert.Equal(t, "w2 w3 w4 w5", chunks[1])
	assert.Equal(t, "w4 w5 w6 w7", chunks[2])
	assert.Equal(t, "w6 w7 w8 w9", chunks[3])
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("only three words", 300, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only three words", chunks[0])
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Empty(t, ChunkText("", 300, 50))
	assert.Empty(t, ChunkText("   \n\t ", 300, 50))
}

// 重叠不小于窗口时按无重叠处理，避免死循环
func TestChunkTextOverlapNotSmallerThanSize(t *testing.T) {
	chunks := ChunkText(words(8), 4, 4)
	require.Len(t, chunks, 2)
	assert.Equal(t, "w0 w1 w2 w3", chunks[0])
	assert.Equal(t, "w4 w5 w6 w7", chunks[1])
}

func TestChunkTextCoversAllWords(t *testing.T) {
	chunks := ChunkText(words(103), 30, 5)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(last, "w102"))
}
