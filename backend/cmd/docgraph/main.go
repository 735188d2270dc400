// Command docgraph imports linked PDF documents into a Neo4j knowledge graph
// and an Elasticsearch full-text index.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docgraph/backend/internal/constants"
	"docgraph/backend/internal/discovery"
	"docgraph/backend/internal/extract"
	"docgraph/backend/internal/fetch"
	"docgraph/backend/internal/graph"
	"docgraph/backend/internal/ingest"
	"docgraph/backend/internal/metrics"
	"docgraph/backend/internal/pipeline"
	"docgraph/backend/internal/search"
	"docgraph/backend/pkg/config"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docgraph",
		Short: "Import linked PDF documents into a knowledge graph and search index",
		Long: `docgraph discovers PDF links on a seed page, reads each document's
info dictionary and XMP metadata, links documents to shared Author and
Keyword nodes in Neo4j and indexes the file content in Elasticsearch.

Configuration is read from the environment (and an optional .env file).`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ingestCmd(), schemaCmd(), auditCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docgraph version %s\n", version)
		},
	})
	return cmd
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report orphaned and duplicated Author and Keyword nodes",
		Long: `Read the graph back and print a JSON report: the number of documents,
and per entity label the node count, nodes no document links to, names
stored on more than one node and names that differ only by case, spacing
or trailing punctuation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.IsProduction(), cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			repo, closeRepo, err := openGraph(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			return writeAudit(cmd.Context(), repo, cmd.OutOrStdout())
		},
	}
}

func writeAudit(ctx context.Context, a graph.Auditor, out io.Writer) error {
	report, err := graph.Audit(ctx, a, constants.DocumentLabel,
		[]string{constants.AuthorLabel, constants.KeywordLabel}, constants.NameProperty)
	if err != nil {
		return apperrors.NewStoreUnavailable("audit", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type ingestOptions struct {
	seedURL    string
	workers    int
	dryRun     bool
	statusAddr string
}

func ingestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one import batch",
		Long: `Run one import batch from the seed page.

With --dry-run the graph and the index are kept in memory, so the batch
exercises discovery, download and extraction without touching Neo4j or
Elasticsearch. The run summary is printed as JSON on stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.IsProduction(), cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runIngest(ctx, cfg, opts.dryRun, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.seedURL, "seed", "", "Seed page URL (overrides SEED_URL)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Documents processed in parallel (overrides WORKERS)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use an in-memory graph and index")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "Serve /health and /metrics on this address (overrides STATUS_ADDR)")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create graph constraints, the ingest pipeline and the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.IsProduction(), cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			b, err := openBackends(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer b.close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command, opts *ingestOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.SeedURL = opts.seedURL
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.workers
	}
	if cmd.Flags().Changed("status-addr") {
		cfg.StatusAddr = opts.statusAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runIngest(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) error {
	log := logger.Get()
	runID := uuid.NewString()
	m := metrics.New()

	b, err := openBackends(ctx, cfg, dryRun)
	if err != nil {
		return err
	}
	defer b.close()

	if cfg.StatusAddr != "" {
		srv := startStatusServer(cfg.StatusAddr, newStatusRouter(m, runID, log), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Status server forced to shutdown", zap.Error(err))
			}
		}()
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.MaxDocumentBytes,
		RateLimit: cfg.FetchRateLimit,
		Burst:     cfg.FetchBurst,
	})

	resolver, err := ingest.NewResolver(b.store, cfg.EntityCacheSize, cfg.StoreTimeout, m)
	if err != nil {
		return err
	}
	ingestor := ingest.NewIngestor(b.store, resolver, ingest.NewIndexWriter(b.index, cfg.IndexTimeout, m), ingest.IngestorConfig{
		RunID:        runID,
		StoreTimeout: cfg.StoreTimeout,
		Metrics:      m,
	})

	driver := pipeline.NewDriver(
		discovery.NewLinkCollector(fetcher, cfg.LinkSuffix),
		fetcher,
		extract.NewPDFExtractor(),
		ingestor,
		pipeline.Config{
			RunID:                       runID,
			Workers:                     cfg.Workers,
			FetchTimeout:                cfg.FetchTimeout,
			MaxConsecutiveInfraFailures: cfg.MaxConsecutiveInfraFailures,
			Metrics:                     m,
		},
	)

	summary, runErr := driver.Run(ctx, cfg.SeedURL)

	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Push(pushCtx, cfg.PushgatewayURL, runID); err != nil {
		log.Warn("Failed to push metrics", zap.Error(err))
	}

	if summary != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Warn("Failed to write summary", zap.Error(err))
		}
	}
	return runErr
}

type backends struct {
	store graph.Store
	index search.Index
	close func()
}

// openBackends connects to Neo4j and Elasticsearch and makes sure their
// schema exists. dryRun swaps both for in-memory implementations.
func openBackends(ctx context.Context, cfg *config.Config, dryRun bool) (*backends, error) {
	log := logger.Get()

	if dryRun {
		store := graph.NewMemoryStore()
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info("Dry run: using in-memory graph and index")
		return &backends{store: store, index: search.NewMemoryIndex(), close: func() {}}, nil
	}

	repo, closeRepo, err := openGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		closeRepo()
		return nil, err
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.ElasticsearchURLs,
		Username:  cfg.ElasticsearchUser,
		Password:  cfg.ElasticsearchPassword,
	})
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	index := search.NewElasticIndex(client, cfg.ElasticsearchIndex, cfg.ElasticsearchPipeline)
	if err := index.EnsureIndex(ctx); err != nil {
		closeRepo()
		return nil, apperrors.NewIndexUnavailable(cfg.ElasticsearchIndex, err)
	}

	log.Info("Backends ready",
		zap.String("neo4j", cfg.Neo4jURI),
		zap.Strings("elasticsearch", cfg.ElasticsearchURLs),
		zap.String("index", cfg.ElasticsearchIndex),
	)
	return &backends{store: repo, index: index, close: closeRepo}, nil
}

func openGraph(ctx context.Context, cfg *config.Config) (*graph.Repository, func(), error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, nil, apperrors.NewGraphConnectionFailed(cfg.Neo4jURI, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, nil, apperrors.NewGraphConnectionFailed(cfg.Neo4jURI, err)
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
	return repo, func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Get().Warn("Failed to close Neo4j driver", zap.Error(err))
		}
	}, nil
}
