// Package knowledge 把知识库片段及其向量保存在 SQLite 中，借助 sqlite-vec 做余弦距离检索。
// Store 同时实现 eino 的 retriever.Retriever 与 indexer.Indexer。
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
)

var (
	// ErrKnowledgeUnavailable 表示知识库文件或数据表不存在，需要先运行初始化工具。
	ErrKnowledgeUnavailable = errors.New("knowledge base is unavailable")
	// ErrNoEmbedder 表示既没有默认向量化器，也没有通过 option 传入。
	ErrNoEmbedder = errors.New("knowledge store has no embedder")
)

const defaultTopK = 4

func init() {
	vec.Auto()
}

// Options 描述知识库的打开方式。
type Options struct {
	Path       string
	Collection string
	// Create 为 true 时允许创建新的数据库文件（初始化工具使用）。
	Create bool
}

// Store 是基于 sqlite-vec 的知识片段存储。
type Store struct {
	db         *sql.DB
	collection string
	embedder   embedding.Embedder
	log        *logger.Logger

	mu sync.RWMutex
}

var (
	_ retriever.Retriever = (*Store)(nil)
	_ indexer.Indexer     = (*Store)(nil)
)

// Open 打开知识库。Create 为 false 时文件或数据表缺失都返回 ErrKnowledgeUnavailable。
func Open(ctx context.Context, opts Options, embedder embedding.Embedder, log *logger.Logger) (*Store, error) {
	if opts.Collection == "" {
		opts.Collection = "mental_health_kb"
	}

	if !opts.Create {
		if _, err := os.Stat(opts.Path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKnowledgeUnavailable, opts.Path, err)
		}
	} else if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create knowledge directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge database: %w", err)
	}

	s := &Store{
		db:         db,
		collection: opts.Collection,
		embedder:   embedder,
		log:        logger.OrNop(log).With("component", "knowledge_store"),
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not loaded: %w", err)
	}

	if opts.Create {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'knowledge_chunks'").Scan(&name)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: missing chunk table: %w", ErrKnowledgeUnavailable, err)
		}
	}

	s.log.Info("knowledge store opened", "path", opts.Path, "collection", opts.Collection, "vec_version", version)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS knowledge_chunks (
		id         TEXT NOT NULL,
		collection TEXT NOT NULL,
		content    TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		metadata   TEXT NOT NULL DEFAULT '{}',
		embedding  BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_collection ON knowledge_chunks(collection);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate knowledge schema: %w", err)
	}
	return nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	return s.db.Close()
}

// Count 返回当前集合中的片段数。
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_chunks WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count knowledge chunks: %w", err)
	}
	return n, nil
}

// stagingSuffix 标记重建期间的暂存集合。
const stagingSuffix = "__staging"

func (s *Store) staging() string {
	return s.collection + stagingSuffix
}

// BeginRebuild 清空暂存集合并返回写入暂存集合的 Indexer。
// 正式集合在 CommitRebuild 之前保持不变，检索不受影响。
func (s *Store) BeginRebuild(ctx context.Context) (indexer.Indexer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_chunks WHERE collection = ?", s.staging()); err != nil {
		return nil, fmt.Errorf("clear staging collection: %w", err)
	}
	return stagingIndexer{s: s}, nil
}

// CommitRebuild 在一个事务内删除正式集合并把暂存集合改名为正式集合。
func (s *Store) CommitRebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild commit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM knowledge_chunks WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("clear knowledge collection: %w", err)
	}
	res, err := tx.ExecContext(ctx, "UPDATE knowledge_chunks SET collection = ? WHERE collection = ?", s.collection, s.staging())
	if err != nil {
		return fmt.Errorf("promote staging collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}

	n, _ := res.RowsAffected()
	s.log.Info("knowledge collection rebuilt", "collection", s.collection, "chunks", n)
	return nil
}

// AbortRebuild 丢弃暂存集合。
func (s *Store) AbortRebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_chunks WHERE collection = ?", s.staging()); err != nil {
		return fmt.Errorf("discard staging collection: %w", err)
	}
	return nil
}

type stagingIndexer struct {
	s *Store
}

func (si stagingIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	return si.s.storeInto(ctx, si.s.staging(), docs, opts...)
}

// Store 向量化文档并写入集合，返回文档 ID。缺少 ID 的文档自动生成 UUID。
func (s *Store) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	return s.storeInto(ctx, s.collection, docs, opts...)
}

func (s *Store) storeInto(ctx context.Context, collection string, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	emb := s.embedder
	if o := indexer.GetCommonOptions(&indexer.Options{}, opts...); o.Embedding != nil {
		emb = o.Embedding
	}
	if emb == nil {
		return nil, ErrNoEmbedder
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin knowledge transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO knowledge_chunks (id, collection, content, source, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare knowledge insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}

		source, _ := doc.MetaData["source"].(string)
		meta, err := json.Marshal(userMetadata(doc.MetaData))
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", id, err)
		}
		blob, err := vec.SerializeFloat32(toFloat32(vectors[i]))
		if err != nil {
			return nil, fmt.Errorf("encode embedding for %s: %w", id, err)
		}

		if _, err := stmt.ExecContext(ctx, id, collection, doc.Content, source, string(meta), blob); err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", id, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit knowledge transaction: %w", err)
	}
	return ids, nil
}

// Retrieve 返回与查询余弦距离最近的片段，距离写入文档分数，越小越相似。
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	o := retriever.GetCommonOptions(&retriever.Options{}, opts...)

	emb := s.embedder
	if o.Embedding != nil {
		emb = o.Embedding
	}
	if emb == nil {
		return nil, ErrNoEmbedder
	}

	topK := defaultTopK
	if o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}

	vectors, err := emb.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	blob, err := vec.SerializeFloat32(toFloat32(vectors[0]))
	if err != nil {
		return nil, fmt.Errorf("encode query embedding: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, metadata, vec_distance_cosine(embedding, ?) AS distance
		FROM knowledge_chunks
		WHERE collection = ?
		ORDER BY distance ASC
		LIMIT ?`, blob, s.collection, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var (
			id, content, source, rawMeta string
			distance                     float64
		)
		if err := rows.Scan(&id, &content, &source, &rawMeta, &distance); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		if o.ScoreThreshold != nil && distance > *o.ScoreThreshold {
			continue
		}

		meta := map[string]any{}
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			s.log.Warn("discarding unreadable chunk metadata", "id", id, "error", err)
			meta = map[string]any{}
		}
		meta["source"] = source

		doc := &schema.Document{ID: id, Content: content, MetaData: meta}
		docs = append(docs, doc.WithScore(distance))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge rows: %w", err)
	}
	return docs, nil
}

// userMetadata 去掉 schema.Document 内部使用的保留键。
func userMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "source" || len(k) > 0 && k[0] == '_' {
			continue
		}
		out[k] = v
	}
	return out
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
