package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/indexer"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
)

// ErrNoDocuments 表示知识库目录中没有可用的文本文件。
var ErrNoDocuments = errors.New("no .txt, .md or .pdf documents found")

const storeBatchSize = 64

// Target 是支持整体重建的向量存储：新内容先写入暂存区，全部写入后一次性替换正式集合。
type Target interface {
	BeginRebuild(ctx context.Context) (indexer.Indexer, error)
	CommitRebuild(ctx context.Context) error
	AbortRebuild(ctx context.Context) error
}

// Stats 汇总一次导入的结果。
type Stats struct {
	Files  int
	Chunks int
}

// Pipeline 串联加载、切分与写入。
type Pipeline struct {
	loader   document.Loader
	splitter document.Transformer
	target   Target
	log      *logger.Logger
}

// NewPipeline 创建导入流程。
func NewPipeline(loader document.Loader, splitter document.Transformer, target Target, log *logger.Logger) *Pipeline {
	return &Pipeline{
		loader:   loader,
		splitter: splitter,
		target:   target,
		log:      logger.OrNop(log).With("component", "ingest"),
	}
}

// Run 重建集合：读取 dir 下所有文档，切分后分批写入暂存区再整体替换。
// 任一步失败时正式集合保持原样。
func (p *Pipeline) Run(ctx context.Context, dir string) (Stats, error) {
	docs, err := p.loader.Load(ctx, document.Source{URI: dir})
	if err != nil {
		return Stats{}, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return Stats{}, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	chunks, err := p.splitter.Transform(ctx, docs)
	if err != nil {
		return Stats{}, fmt.Errorf("split documents: %w", err)
	}
	p.log.Info("documents split", "files", len(docs), "chunks", len(chunks))

	staging, err := p.target.BeginRebuild(ctx)
	if err != nil {
		return Stats{}, err
	}

	for start := 0; start < len(chunks); start += storeBatchSize {
		end := min(start+storeBatchSize, len(chunks))
		if _, err := staging.Store(ctx, chunks[start:end]); err != nil {
			p.abort(ctx)
			return Stats{}, fmt.Errorf("store chunks %d-%d: %w", start, end, err)
		}
		p.log.Debug("chunks stored", "done", end, "total", len(chunks))
	}

	if err := p.target.CommitRebuild(ctx); err != nil {
		p.abort(ctx)
		return Stats{}, err
	}

	return Stats{Files: len(docs), Chunks: len(chunks)}, nil
}

func (p *Pipeline) abort(ctx context.Context) {
	// ctx 可能已取消，清理暂存区使用独立的 context
	if err := p.target.AbortRebuild(context.WithoutCancel(ctx)); err != nil {
		p.log.Warn("failed to discard staging collection", "error", err)
	}
}
