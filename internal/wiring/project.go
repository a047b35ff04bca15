// Package wiring constructs the per-repository Project: the opened
// stores and pipeline components (Runner, Engine, Expander, Packer)
// that both the CLI commands and the MCP server drive. Generalizes
// the dependency-injection style of the index command into one
// "open stores for this repo_path" path shared by every entry point.
package wiring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lyy0709/contextweaver/internal/chunk"
	"github.com/lyy0709/contextweaver/internal/config"
	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/graph"
	"github.com/lyy0709/contextweaver/internal/index"
	"github.com/lyy0709/contextweaver/internal/pack"
	"github.com/lyy0709/contextweaver/internal/rerank"
	"github.com/lyy0709/contextweaver/internal/resolve"
	"github.com/lyy0709/contextweaver/internal/scanner"
	"github.com/lyy0709/contextweaver/internal/search"
	"github.com/lyy0709/contextweaver/internal/store"
)

// DataDirName is the per-repository directory holding all persisted
// index state, sibling to .git.
const DataDirName = ".contextweaver"

// Project bundles one repository's opened stores and the four
// pipeline stages built on top of them.
type Project struct {
	RepoRoot string
	DataDir  string
	Config   *config.Config

	Metadata store.MetadataStore
	FTS      store.FTSIndex
	Vectors  *store.VectorChunkStore
	vecStore store.VectorStore

	Embedder embed.Embedder
	Reranker rerank.Reranker
	Chunker  chunk.Chunker

	Runner   *index.Runner
	Engine   *search.Engine
	Expander *graph.Expander
	Packer   *pack.Packer
}

func vectorsPath(dataDir string) string { return filepath.Join(dataDir, "vectors.hnsw") }
func metadataPath(dataDir string) string { return filepath.Join(dataDir, "metadata.db") }
func ftsPath(dataDir string) string       { return filepath.Join(dataDir, "fts.db") }

// Open resolves repoRoot to its project root, opens (or creates) its
// data directory and stores, and wires the full retrieval pipeline.
// Credentials and endpoints for the embedder and reranker come from
// the environment (spec.md marks that loading mechanism as an
// external-collaborator concern), using the CONTEXTWEAVER_* prefix.
func Open(ctx context.Context, repoRoot string) (*Project, error) {
	root, err := config.FindProjectRoot(repoRoot)
	if err != nil {
		root = repoRoot
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("wiring: resolve repo root: %w", err)
	}

	dataDir := filepath.Join(absRoot, DataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("wiring: create data directory: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("wiring: load config: %w", err)
	}

	embedder, err := embedderFromEnv()
	if err != nil {
		return nil, fmt.Errorf("wiring: embedder: %w", err)
	}

	metadata, err := store.NewSQLiteMetadataStore(metadataPath(dataDir))
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("wiring: open metadata store: %w", err)
	}

	fts, err := store.NewSQLiteChunkFTS(ftsPath(dataDir), store.DefaultBM25Config())
	if err != nil {
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("wiring: open fts index: %w", err)
	}

	vecBackend, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		fts.Close()
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("wiring: create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorsPath(dataDir)); statErr == nil {
		if err := vecBackend.Load(vectorsPath(dataDir)); err != nil {
			fts.Close()
			metadata.Close()
			embedder.Close()
			return nil, fmt.Errorf("wiring: load vector store: %w", err)
		}
	}
	vectors := store.NewVectorChunkStore(vecBackend)

	reranker := rerankerFromEnv()

	chunker := chunk.NewCodeChunker()
	parsers := chunk.NewParserPool(chunk.DefaultRegistry())
	resolvers := resolve.NewRegistry()

	sc, err := scanner.New()
	if err != nil {
		vecBackend.Close()
		fts.Close()
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("wiring: create scanner: %w", err)
	}

	indexer := index.NewIndexer(metadata, vectors, fts, embedder, chunker, index.DefaultConfig())
	lock := index.NewScanLock(dataDir)
	runner := index.NewRunner(sc, indexer, lock)

	searchCfg := search.DefaultConfig()
	engine := search.NewEngine(embedder, vectors, fts, reranker, searchCfg)
	expander := graph.NewExpander(vectors, metadata, resolvers, parsers, absRoot, graph.DefaultConfig())
	packer := pack.NewPacker(vectors, pack.DefaultConfig())

	return &Project{
		RepoRoot: absRoot,
		DataDir:  dataDir,
		Config:   cfg,
		Metadata: metadata,
		FTS:      fts,
		Vectors:  vectors,
		vecStore: vecBackend,
		Embedder: embedder,
		Reranker: reranker,
		Chunker:  chunker,
		Runner:   runner,
		Engine:   engine,
		Expander: expander,
		Packer:   packer,
	}, nil
}

// Close persists the vector index and releases every opened store and
// client. Errors are collected and joined rather than short-circuited,
// so a failure to save vectors doesn't leak the other handles.
func (p *Project) Close() error {
	var errs []error
	if err := p.vecStore.Save(vectorsPath(p.DataDir)); err != nil {
		errs = append(errs, fmt.Errorf("save vectors: %w", err))
	}
	if err := p.vecStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close vectors: %w", err))
	}
	if err := p.FTS.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close fts: %w", err))
	}
	if err := p.Metadata.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metadata: %w", err))
	}
	if err := p.Embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}
	if err := p.Reranker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reranker: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %w", joined, e)
	}
	return joined
}

// embedderFromEnv builds the HTTPEmbedder from CONTEXTWEAVER_EMBED_*
// environment variables, matching spec.md's EMBEDDINGS_DIMENSIONS and
// EMBEDDINGS_MAX_CONCURRENCY configuration options.
func embedderFromEnv() (embed.Embedder, error) {
	baseURL := os.Getenv("CONTEXTWEAVER_EMBED_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("CONTEXTWEAVER_EMBED_BASE_URL is required")
	}
	dims := envInt("CONTEXTWEAVER_EMBED_DIMENSIONS", 1024)
	return embed.NewHTTPEmbedder(embed.HTTPEmbedderConfig{
		BaseURL:     baseURL,
		APIKey:      os.Getenv("CONTEXTWEAVER_EMBED_API_KEY"),
		Model:       envOr("CONTEXTWEAVER_EMBED_MODEL", "text-embedding-3-small"),
		Dimensions:  dims,
		BatchSize:   envInt("CONTEXTWEAVER_EMBED_BATCH_SIZE", 32),
		Concurrency: envInt("CONTEXTWEAVER_EMBED_MAX_CONCURRENCY", 10),
	})
}

// rerankerFromEnv builds an HTTPReranker when a rerank endpoint is
// configured, falling back to NoOpReranker otherwise.
func rerankerFromEnv() rerank.Reranker {
	baseURL := os.Getenv("CONTEXTWEAVER_RERANK_BASE_URL")
	if baseURL == "" {
		return rerank.NoOpReranker{}
	}
	r, err := rerank.NewHTTPReranker(rerank.HTTPClientConfig{
		BaseURL: baseURL,
		APIKey:  os.Getenv("CONTEXTWEAVER_RERANK_API_KEY"),
		Model:   envOr("CONTEXTWEAVER_RERANK_MODEL", "rerank-v1"),
	})
	if err != nil {
		return rerank.NoOpReranker{}
	}
	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
