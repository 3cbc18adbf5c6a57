package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/quaero-ai/quaero/internal/api/handlers"
	"github.com/quaero-ai/quaero/internal/chunker"
	"github.com/quaero-ai/quaero/internal/config"
	"github.com/quaero-ai/quaero/internal/database"
	"github.com/quaero-ai/quaero/internal/extract"
	"github.com/quaero-ai/quaero/internal/ingest"
	"github.com/quaero-ai/quaero/internal/jobs"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/repository"
	"github.com/quaero-ai/quaero/internal/server"
	"github.com/quaero-ai/quaero/internal/service"
	"github.com/quaero-ai/quaero/internal/storage"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/telemetry"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

// multipartOverhead is the request-body headroom on top of the upload
// limit, covering multipart framing and form fields
const multipartOverhead = 1 << 20

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and job worker",
		Long:  "Start the quaero API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	// Ingestion and answering both depend on object storage and a
	// model provider, so missing credentials are a startup error
	// rather than a degraded mode.
	if !cfg.HasS3() {
		return fmt.Errorf("object storage not configured: set QUAERO_S3_ENDPOINT, QUAERO_S3_ACCESS_KEY_ID and QUAERO_S3_SECRET_ACCESS_KEY")
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("model provider not configured: set QUAERO_OPENAI_API_KEY")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	tables, err := tabular.NewStore(cfg.TableStorePath)
	if err != nil {
		return fmt.Errorf("failed to open table store: %w", err)
	}
	defer tables.Close()

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
		ChatModel:      cfg.ChatModel,
		RateLimit:      cfg.ModelRateLimit,
	})

	vectors := vectorstore.NewPgxStore(pool)

	knowledgeBaseRepo := repository.NewKnowledgeBaseRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	pipeline := ingest.NewPipeline(
		documentRepo,
		s3Client,
		vectors,
		extract.NewRegistry(),
		chunker.NewRegistry(),
		llm,
		llm,
		tables,
		ingest.Config{
			ChunkTargetTokens:  cfg.ChunkTargetTokens,
			ChunkOverlapTokens: cfg.ChunkOverlapTokens,
		},
	)
	questionIndexer := ingest.NewQuestionIndexer(questionRepo, vectors, llm)

	var reranker *service.Reranker
	if cfg.RerankEnabled {
		reranker = service.NewReranker(llm, cfg.RerankCallTimeout)
	}
	retrieval := service.NewRetrievalService(vectors, llm, reranker, service.RetrievalConfig{
		TopK:                cfg.RetrievalTopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		RerankCandidates:    cfg.RerankCandidates,
	})
	queryRouter := service.NewQueryRouter(vectors, questionRepo, llm, llm, service.RouterConfig{
		QuestionMatchThreshold: cfg.QuestionMatchThreshold,
		ConfidenceThreshold:    cfg.RoutingConfidenceThreshold,
	})
	tableQuery := service.NewTableQueryService(tables, documentRepo, llm)
	synthesizer := service.NewSynthesizer(llm, service.SynthesizerConfig{
		TokenBudget: cfg.ContextTokenBudget,
	})
	answerSvc := service.NewAnswerService(messageRepo, conversationRepo, queryRouter, retrieval, tableQuery, synthesizer)

	documentSvc := service.NewDocumentService(documentRepo, knowledgeBaseRepo, jobRepo, s3Client, txRunner, cfg.MaxUploadBytes)
	questionSvc := service.NewQuestionService(questionRepo, knowledgeBaseRepo, jobRepo, txRunner)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, knowledgeBaseRepo, txRunner)
	knowledgeBaseSvc := service.NewKnowledgeBaseService(knowledgeBaseRepo, documentRepo, vectors, s3Client, tables)

	runner := jobs.NewRunner(jobRepo, jobs.NewHandlerSet(pipeline, questionIndexer, answerSvc), jobs.Config{
		BatchSize:      cfg.JobBatchSize,
		Concurrency:    cfg.WorkerConcurrency,
		MaxRetries:     int32(cfg.JobMaxRetries),
		RetryBaseDelay: cfg.JobRetryBaseDelay,
	})
	worker := jobs.NewWorker(runner, cfg.JobPollInterval)
	go worker.Start(ctx)
	log.Println("job worker started")

	router := server.NewRouter(server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(knowledgeBaseSvc),
		DocumentHandler:      handlers.NewDocumentHandler(documentSvc, cfg.MaxUploadBytes),
		QuestionHandler:      handlers.NewQuestionHandler(questionSvc),
		ConversationHandler:  handlers.NewConversationHandler(conversationSvc),
		MaxBodyBytes:         cfg.MaxUploadBytes + multipartOverhead,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Println("migrations: no change")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty", version)
	}
	log.Printf("migrations: at version %d", version)

	return nil
}
