package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/assistant"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/extract"
	"github.com/hyperjump/studybuddy/internal/indexer"
	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/notify"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/vector"
)

// Components holds the wired application.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Indexer     *indexer.Indexer
	Retriever   *retrieval.Retriever
	Scheduler   *schedule.Scheduler
	Feed        *notify.Feed
	Assistant   *assistant.Assistant
}

// Close releases the embedder, index and database. The scheduler is shut down by the caller.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	var base embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
	)
	if err != nil {
		logger.Warn("onnx embedder unavailable, using mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		base = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		base = onnxEmbedder
	}
	c.Embedder = embedding.WithCache(base, embedding.NewEmbeddingCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL))

	vectorIndex, err := vector.NewVectorIndex(cfg.Vector.IndexType, cfg.Embedding.Dimensions)
	if err != nil {
		// Fall back to memory index if configured type fails (e.g., FAISS not available)
		if cfg.Vector.IndexType == "memory" || cfg.Vector.IndexType == "" {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Vector.IndexType), zap.Error(err))
		if vectorIndex, err = vector.NewVectorIndex("memory", cfg.Embedding.Dimensions); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	c.VectorIndex = vectorIndex
	if cfg.Storage.IndexSnapshotPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.IndexSnapshotPath); loadErr != nil {
			logger.Debug("index snapshot not loaded", zap.String("path", cfg.Storage.IndexSnapshotPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", vectorIndex.Type()),
		zap.Int("size", vectorIndex.Size()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	idxOpts := []indexer.IndexerOption{}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	c.Indexer = indexer.NewIndexer(store, c.Embedder, vectorIndex, cfg.Retrieval.ChunkSize, extract.NewExtractor(), idxOpts...)
	c.Retriever = retrieval.NewRetriever(c.Embedder, vectorIndex, logger)

	if chunks, countErr := store.CountChunks(ctx); countErr == nil && int64(vectorIndex.Size()) < chunks {
		n, rebuildErr := c.Indexer.Rebuild(ctx)
		if rebuildErr != nil {
			c.Close()
			return nil, fmt.Errorf("failed to rebuild vector index: %w", rebuildErr)
		}
		logger.Info("vector index rebuilt from catalog", zap.Int("chunks", n))
	}

	c.Scheduler = schedule.New(schedule.WithLogger(logger))
	c.Feed = notify.NewFeed(cfg.Notify.FeedSize)
	sinks := notify.Multi{c.Feed, notify.NewLogNotifier(logger)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.Notify.WebhookURL,
			notify.WithToken(cfg.Notify.WebhookToken()),
			notify.WithRateLimit(cfg.Notify.RequestsPerSecond),
			notify.WithWebhookLogger(logger),
		))
	}

	var (
		classifier assistant.Classifier   = llm.Disabled{}
		resolver   assistant.TimeResolver = llm.Disabled{}
		generator  assistant.Generator    = llm.Disabled{}
	)
	client, err := llm.NewClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey(),
		ChatModel:         cfg.LLM.ChatModel,
		ContextModel:      cfg.LLM.ContextModel,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Timeout:           cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Warn("llm disabled, chat will use fallback replies",
			zap.String("api_key_env", cfg.LLM.APIKeyEnv), zap.Error(err))
	} else {
		classifier, resolver, generator = client, client, client
	}

	c.Assistant = assistant.New(classifier, resolver, generator, c.Retriever, c.Scheduler,
		assistant.WithLogger(logger),
		assistant.WithTopK(cfg.Retrieval.TopK),
		assistant.WithNotifier(sinks),
	)
	return c, nil
}
