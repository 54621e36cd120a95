package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// RecursiveSplitter 把 langchaingo 的递归字符切分器包装成 eino 的 document.Transformer。
// 长度以字符计，分隔符依次为段落、换行、空格、单字符。
type RecursiveSplitter struct {
	ChunkSize int
	Overlap   int

	splitter textsplitter.RecursiveCharacter
}

var _ document.Transformer = (*RecursiveSplitter)(nil)

// NewRecursiveSplitter 创建切分器，overlap 必须小于 size。
func NewRecursiveSplitter(size, overlap int) (*RecursiveSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &RecursiveSplitter{
		ChunkSize: size,
		Overlap:   overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Transform 切分每个文档，子块继承元数据，ID 为 "<源ID>#<序号>"。
func (s *RecursiveSplitter) Transform(_ context.Context, src []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range src {
		chunks, err := s.split(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.ID, err)
		}
		for i, chunk := range chunks {
			meta := make(map[string]any, len(doc.MetaData)+1)
			for k, v := range doc.MetaData {
				meta[k] = v
			}
			meta["chunk_index"] = i
			out = append(out, &schema.Document{
				ID:       fmt.Sprintf("%s#%d", doc.ID, i),
				Content:  chunk,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

// Split 返回切分后的非空文本块。
func (s *RecursiveSplitter) Split(text string) []string {
	chunks, _ := s.split(text)
	return chunks
}

func (s *RecursiveSplitter) split(text string) ([]string, error) {
	raw, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	chunks := raw[:0]
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}
