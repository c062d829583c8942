package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuport-labs/docuport-core/internal/adapters/driven/ai"
	"github.com/docuport-labs/docuport-core/internal/adapters/driven/postgres"
	"github.com/docuport-labs/docuport-core/internal/adapters/driven/qdrant"
	redisqueue "github.com/docuport-labs/docuport-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/docuport-labs/docuport-core/internal/adapters/driven/redis"
	"github.com/docuport-labs/docuport-core/internal/chunker"
	"github.com/docuport-labs/docuport-core/internal/config"
	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driving"
	"github.com/docuport-labs/docuport-core/internal/core/services"
	"github.com/docuport-labs/docuport-core/internal/worker"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("docuport-core %s starting in %s mode", version, mode)

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifeSecs) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis =====
	log.Println("Connecting to Redis...")
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	// ===== AI providers =====
	retry := domain.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelaySecs) * time.Second,
		Jitter:      cfg.Retry.JitterFactor,
	}

	embedder, err := ai.NewOpenAIEmbedding(ai.EmbeddingConfig{
		APIKey:            cfg.EmbedderAPIKey(),
		Model:             cfg.Embedder.Model,
		BaseURL:           cfg.Embedder.BaseURL,
		BatchSize:         cfg.Embedder.BatchSize,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
		Retry:             retry,
	})
	if err != nil {
		log.Fatalf("Failed to create embedding provider: %v", err)
	}

	generator, err := ai.NewOpenAIChat(ai.ChatConfig{
		APIKey:      cfg.GeneratorAPIKey(),
		Model:       cfg.Generator.Model,
		BaseURL:     cfg.Generator.BaseURL,
		Temperature: cfg.Generator.Temperature,
		Retry:       retry,
	})
	if err != nil {
		log.Fatalf("Failed to create generation provider: %v", err)
	}

	// ===== Qdrant vector index =====
	log.Println("Connecting to Qdrant...")
	vectorIndex, err := qdrant.NewIndex(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Dimension:  embedder.Dimensions(),
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to create vector index client: %v", err)
	}
	if err := vectorIndex.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure collection: %v", err)
	}
	log.Println("Qdrant connected and collection ensured")

	// ===== Stores, queue, lock =====
	documentStore := postgres.NewDocumentStore(db)

	taskQueue, err := redisqueue.NewQueue(redisClient,
		fmt.Sprintf("worker-%d", os.Getpid()),
		redisqueue.WithClaimTimeout(cfg.ClaimTimeout()))
	if err != nil {
		log.Fatalf("Failed to create task queue: %v", err)
	}
	defer taskQueue.Close()

	distributedLock := redisadapter.NewLock(redisClient)

	// ===== Core services =====
	splitter, err := chunker.New(chunker.Config{
		MaxSize: cfg.Chunker.MaxSize,
		Overlap: cfg.Chunker.Overlap,
	})
	if err != nil {
		log.Fatalf("Invalid chunker configuration: %v", err)
	}

	indexer := services.NewIndexer(services.IndexerConfig{
		DocumentStore: documentStore,
		VectorIndex:   vectorIndex,
		Embedder:      embedder,
		Chunker:       splitter,
		Logger:        slog.Default(),
	})

	ingestService := services.NewIngestService(services.IngestServiceConfig{
		DocumentStore:   documentStore,
		TaskQueue:       taskQueue,
		TaskMaxAttempts: cfg.Retry.TaskAttempts,
		Logger:          slog.Default(),
	})

	retrieval := services.NewRetrieval(services.RetrievalConfig{
		DocumentStore: documentStore,
		VectorIndex:   vectorIndex,
		Embedder:      embedder,
		TopK:          cfg.Retrieval.TopK,
		Threshold:     cfg.Retrieval.Threshold,
		Logger:        slog.Default(),
	})

	synthesizer := services.NewSynthesizer(services.SynthesizerConfig{
		Generator:   generator,
		TokenBudget: cfg.Retrieval.TokenBudget,
		Logger:      slog.Default(),
	})

	queryService := services.NewQuery(retrieval, synthesizer)

	janitor := services.NewJanitor(services.JanitorConfig{
		DocumentStore: documentStore,
		VectorIndex:   vectorIndex,
		TaskQueue:     taskQueue,
		Lock:          distributedLock,
		Interval:      time.Duration(cfg.Janitor.IntervalSecs) * time.Second,
		TaskRetention: time.Duration(cfg.Janitor.TaskRetentionSecs) * time.Second,
		StuckAfter:    time.Duration(cfg.Janitor.StuckAfterSecs) * time.Second,
		Logger:        slog.Default(),
	})

	switch mode {
	case "worker":
		runWorkerMode(ctx, cfg, taskQueue, indexer, documentStore)

	case "janitor":
		log.Println("Starting janitor mode...")
		janitor.Run(ctx) // blocks until cancelled

	case "all":
		// Janitor in background, worker in foreground
		go janitor.Run(ctx)
		runWorkerMode(ctx, cfg, taskQueue, indexer, documentStore)

	case "ingest":
		runIngest(ctx, ingestService, os.Args[2:])

	case "ask":
		runAsk(ctx, queryService, cfg, os.Args[2:])

	case "list":
		runList(ctx, ingestService)

	case "delete":
		runDelete(ctx, ingestService, os.Args[2:])

	default:
		log.Fatalf("Unknown mode: %s (use: worker, janitor, all, ingest, ask, list, or delete)", mode)
	}
}

// runIngest registers a text file for asynchronous indexing.
func runIngest(ctx context.Context, ingest driving.IngestService, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: docuport-core ingest <file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	doc, err := ingest.Create(ctx, filepath.Base(args[0]), string(data))
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}

	fmt.Printf("Document %s queued for indexing (id=%s)\n", doc.Name, doc.ID)
}

// runAsk answers a question against the indexed corpus.
func runAsk(ctx context.Context, query driving.QueryService, cfg *config.AppConfig, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: docuport-core ask <question>")
	}

	answer, err := query.Ask(ctx, strings.Join(args, " "), driving.RetrieveOptions{
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.Threshold,
	})
	if err != nil {
		log.Fatalf("Failed to answer question: %v", err)
	}

	fmt.Println(answer.Text)
	if answer.Grounded {
		fmt.Printf("\nSources: %s\n", strings.Join(answer.Citations, ", "))
	}
}

// runList prints the document inventory, newest first.
func runList(ctx context.Context, ingest driving.IngestService) {
	docs, err := ingest.List(ctx, 100, 0)
	if err != nil {
		log.Fatalf("Failed to list documents: %v", err)
	}

	for _, doc := range docs {
		fmt.Printf("%s  %-10s  chunks=%-4d  %s\n", doc.ID, doc.Status, doc.ChunkCount, doc.Name)
	}
}

// runDelete removes a document and queues removal of its vectors.
func runDelete(ctx context.Context, ingest driving.IngestService, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: docuport-core delete <document-id>")
	}

	if err := ingest.Delete(ctx, args[0]); err != nil {
		log.Fatalf("Failed to delete document: %v", err)
	}

	fmt.Printf("Document %s deleted\n", args[0])
}

// runWorkerMode starts the worker pool and blocks until shutdown.
func runWorkerMode(
	ctx context.Context,
	cfg *config.AppConfig,
	taskQueue *redisqueue.Queue,
	indexer *services.Indexer,
	documentStore *postgres.DocumentStore,
) {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Indexer:        indexer,
		DocumentStore:  documentStore,
		Logger:         slog.Default(),
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Redis.DequeueTimeoutSec,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started, processing tasks...")
	log.Println("Worker handles:")
	log.Println("  - index_document: Chunk, embed and index a document revision")
	log.Println("  - delete_document: Remove a document's points and record")

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
