package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbedder 按关键词把文本映射到固定坐标轴，便于断言距离顺序。
type axisEmbedder struct {
	calls int
}

func (a *axisEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	a.calls++
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := []float64{0.01, 0.01, 0.01}
		switch {
		case strings.Contains(text, "lonely"):
			v[0] = 1
		case strings.Contains(text, "anxiety"):
			v[1] = 1
		default:
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func openTemp(t *testing.T, emb embedding.Embedder) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "knowledge.db")
	s, err := Open(context.Background(), Options{Path: path, Collection: "test_kb", Create: true}, emb, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	_, err := Open(context.Background(), Options{Path: path}, &axisEmbedder{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKnowledgeUnavailable)
}

func TestStoreAndRetrieveOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	emb := &axisEmbedder{}
	s := openTemp(t, emb)

	ids, err := s.Store(ctx, []*schema.Document{
		{ID: "a", Content: "coping with anxiety", MetaData: map[string]any{"source": "support/anxiety.md", "chunk": 1}},
		{Content: "feeling lonely at school", MetaData: map[string]any{"source": "assessment/loneliness.md"}},
		{ID: "c", Content: "sleep hygiene basics", MetaData: map[string]any{"source": "general/sleep.md"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "a", ids[0])
	assert.NotEmpty(t, ids[1])

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := s.Retrieve(ctx, "I am so lonely", retriever.WithTopK(2))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, ids[1], docs[0].ID)
	assert.Equal(t, "assessment/loneliness.md", docs[0].MetaData["source"])
	assert.Less(t, docs[0].Score(), 0.01)
	assert.Greater(t, docs[1].Score(), 0.9)

	docs, err = s.Retrieve(ctx, "anxiety", retriever.WithTopK(5))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.EqualValues(t, 1, docs[0].MetaData["chunk"])
}

func TestRetrieveScoreThreshold(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, &axisEmbedder{})

	_, err := s.Store(ctx, []*schema.Document{
		{ID: "l", Content: "lonely"},
		{ID: "x", Content: "other"},
	})
	require.NoError(t, err)

	docs, err := s.Retrieve(ctx, "lonely", retriever.WithTopK(5), retriever.WithScoreThreshold(0.5))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "l", docs[0].ID)
}

func TestRebuildReplacesOnlyCollection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.db")
	emb := &axisEmbedder{}

	first, err := Open(ctx, Options{Path: path, Collection: "one", Create: true}, emb, nil)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, Options{Path: path, Collection: "two", Create: true}, emb, nil)
	require.NoError(t, err)
	defer second.Close()

	_, err = first.Store(ctx, []*schema.Document{{ID: "1", Content: "lonely"}, {ID: "old", Content: "other"}})
	require.NoError(t, err)
	_, err = second.Store(ctx, []*schema.Document{{ID: "1", Content: "anxiety"}})
	require.NoError(t, err)

	staging, err := first.BeginRebuild(ctx)
	require.NoError(t, err)
	_, err = staging.Store(ctx, []*schema.Document{{ID: "1", Content: "anxiety"}})
	require.NoError(t, err)

	// 提交前正式集合保持原样。
	n, err := first.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	docs, err := first.Retrieve(ctx, "lonely", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "lonely", docs[0].Content)

	require.NoError(t, first.CommitRebuild(ctx))

	n, err = first.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	docs, err = first.Retrieve(ctx, "lonely", retriever.WithTopK(5))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "anxiety", docs[0].Content)

	n, err = second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 已初始化的文件可以只读方式再次打开。
	reopened, err := Open(ctx, Options{Path: path, Collection: "two"}, emb, nil)
	require.NoError(t, err)
	defer reopened.Close()
	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAbortRebuildKeepsLiveCollection(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, &axisEmbedder{})

	_, err := s.Store(ctx, []*schema.Document{{ID: "1", Content: "lonely"}})
	require.NoError(t, err)

	staging, err := s.BeginRebuild(ctx)
	require.NoError(t, err)
	_, err = staging.Store(ctx, []*schema.Document{{ID: "2", Content: "anxiety"}, {ID: "3", Content: "other"}})
	require.NoError(t, err)
	require.NoError(t, s.AbortRebuild(ctx))

	var staged int
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_chunks WHERE collection = ?", s.staging()).Scan(&staged))
	assert.Zero(t, staged)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreWithoutEmbedder(t *testing.T) {
	s := openTemp(t, nil)
	_, err := s.Store(context.Background(), []*schema.Document{{Content: "x"}})
	assert.ErrorIs(t, err, ErrNoEmbedder)

	_, err = s.Retrieve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEmbedder)
}
