package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"quaero-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	// Requests per second against the model provider, shared by all workers
	ModelRateLimit float64 `envconfig:"MODEL_RATE_LIMIT" default:"10"`

	// Path of the sqlite database holding ingested tabular data
	TableStorePath string `envconfig:"TABLE_STORE_PATH" default:"quaero-tables.db"`

	// Upload boundary
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// Retrieval tuning
	RetrievalTopK       int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.3"`
	RerankEnabled       bool    `envconfig:"RERANK_ENABLED" default:"true"`
	RerankCandidates    int     `envconfig:"RERANK_CANDIDATES" default:"20"`

	// Routing tuning
	QuestionMatchThreshold     float64 `envconfig:"QUESTION_MATCH_THRESHOLD" default:"0.8"`
	RoutingConfidenceThreshold float64 `envconfig:"ROUTING_CONFIDENCE_THRESHOLD" default:"0.7"`

	// Chunking. These are the base sizes; the pipeline scales them per
	// document media type.
	ChunkTargetTokens  int `envconfig:"CHUNK_TARGET_TOKENS" default:"400"`
	ChunkOverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"50"`

	// Answer synthesis
	ContextTokenBudget int `envconfig:"CONTEXT_TOKEN_BUDGET" default:"3000"`

	// Job scheduling
	JobPollInterval   time.Duration `envconfig:"JOB_POLL_INTERVAL" default:"5s"`
	JobBatchSize      int           `envconfig:"JOB_BATCH_SIZE" default:"10"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	JobMaxRetries     int           `envconfig:"JOB_MAX_RETRIES" default:"3"`
	JobRetryBaseDelay time.Duration `envconfig:"JOB_RETRY_BASE_DELAY" default:"30s"`

	// Timeout on the reranking model call; reranking fails open
	RerankCallTimeout time.Duration `envconfig:"RERANK_CALL_TIMEOUT" default:"15s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("QUAERO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
