// kbinit 构建与检查知识库：读取目录中的 .txt/.md/.pdf 文件，切分、向量化后写入 sqlite-vec 存储。
//
// 用法:
//
//	kbinit build --dir ./data/knowledge
//	kbinit stats
//	kbinit query "how to cope with loneliness" -k 5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mindharbor/backend/internal/config"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/service/embedding"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ingest"
	"github.com/zhouzirui/mindharbor/backend/internal/service/retrieval"
	"github.com/zhouzirui/mindharbor/backend/internal/store/knowledge"
)

var (
	dbPath     string
	collection string
	sourceDir  string
	queryTopK  int
)

var rootCmd = &cobra.Command{
	Use:           "kbinit",
	Short:         "Build and inspect the knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the knowledge collection from a directory of documents",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Show the nearest chunks and their cosine distances",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "knowledge database path (defaults to KB_PATH)")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "collection name (defaults to KB_COLLECTION)")
	buildCmd.Flags().StringVar(&sourceDir, "dir", "./data/knowledge", "directory containing .txt, .md and .pdf documents")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 5, "number of chunks to show")

	rootCmd.AddCommand(buildCmd, statsCmd, queryCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	log *logger.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Knowledge.Path = dbPath
	}
	if collection != "" {
		cfg.Knowledge.Collection = collection
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) open(ctx context.Context, create bool) (*knowledge.Store, error) {
	embedder, err := embedding.New(e.cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return knowledge.Open(ctx, knowledge.Options{
		Path:       e.cfg.Knowledge.Path,
		Collection: e.cfg.Knowledge.Collection,
		Create:     create,
	}, embedder, e.log)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ctx := cmd.Context()
	store, err := e.open(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	splitter, err := ingest.NewRecursiveSplitter(e.cfg.Knowledge.ChunkSize, e.cfg.Knowledge.ChunkOverlap)
	if err != nil {
		return err
	}

	loader, err := ingest.NewDirLoader(ctx)
	if err != nil {
		return err
	}

	stats, err := ingest.NewPipeline(loader, splitter, store, e.log).Run(ctx, sourceDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files into %d chunks (%s, collection %s)\n",
		stats.Files, stats.Chunks, e.cfg.Knowledge.Path, e.cfg.Knowledge.Collection)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	store, err := knowledge.Open(cmd.Context(), knowledge.Options{
		Path:       e.cfg.Knowledge.Path,
		Collection: e.cfg.Knowledge.Collection,
	}, nil, e.log)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks in collection %s\n", e.cfg.Knowledge.Path, n, e.cfg.Knowledge.Collection)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ctx := cmd.Context()
	store, err := e.open(ctx, false)
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.Retrieve(ctx, strings.Join(args, " "), retriever.WithTopK(queryTopK))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, doc := range docs {
		f := retrieval.FromDocument(doc)
		fmt.Fprintf(out, "%2d. %.4f  %-24s %s\n    %s\n", i+1, f.Distance, f.Category(), f.SourceFile(), f.Snippet(120))
	}
	return nil
}
