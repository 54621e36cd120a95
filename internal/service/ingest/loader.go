// Package ingest 把知识库目录中的文本与 PDF 文件加载、切分、向量化并写入向量存储。
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// MetaSource 是文档元数据中的来源路径键，值为相对知识库根目录的路径。
const MetaSource = "source"

var supportedExt = map[string]bool{".txt": true, ".md": true, ".pdf": true}

// DirLoader 递归读取目录下的 .txt、.md 与 .pdf 文件，实现 eino 的 document.Loader。
// 按扩展名分派解析器：PDF 走 eino-ext 的 pdf 解析器，其余按纯文本读取。
type DirLoader struct {
	parser parser.Parser
}

var _ document.Loader = (*DirLoader)(nil)

// NewDirLoader 创建目录加载器。
func NewDirLoader(ctx context.Context) (*DirLoader, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{".pdf": pdfParser},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create ext parser: %w", err)
	}
	return &DirLoader{parser: ext}, nil
}

// Load 以 src.URI 为根目录加载文档，结果按路径排序。
func (l *DirLoader) Load(ctx context.Context, src document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	root := src.URI
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("knowledge directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge directory: %s is not a directory", root)
	}

	var docs []*schema.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !supportedExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := l.parse(ctx, path)
		if err != nil {
			return err
		}
		if content == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, &schema.Document{
			ID:       rel,
			Content:  content,
			MetaData: map[string]any{MetaSource: rel},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// parse 读取单个文件并合并解析出的全部文本。
func (l *DirLoader) parse(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	// ExtParser 按 URI 扩展名选择解析器，大小写不一致的扩展名统一为小写
	ext := filepath.Ext(path)
	uri := strings.TrimSuffix(path, ext) + strings.ToLower(ext)

	parsed, err := l.parser.Parse(ctx, f, parser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	parts := make([]string, 0, len(parsed))
	for _, doc := range parsed {
		if text := strings.TrimSpace(doc.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
