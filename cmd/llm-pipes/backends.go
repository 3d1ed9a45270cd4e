package llmpipes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/llm-pipes/internal/completion"
	"github.com/temirov/llm-pipes/internal/config"
	"github.com/temirov/llm-pipes/internal/fsops"
	"github.com/temirov/llm-pipes/internal/vectorstore"
	"github.com/temirov/llm-pipes/tasks"
)

// backends are built once per command from the root configuration.
type backends struct {
	root       config.Root
	logger     *zap.Logger
	fileSystem fsops.FS
	closers    []func() error
}

func (app *application) backends() (*backends, error) {
	rootConfiguration, err := loadRootConfiguration(app.configPath())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(rootConfiguration.Common, app.logLevel())
	if err != nil {
		return nil, err
	}
	return &backends{root: rootConfiguration, logger: logger, fileSystem: fsops.NewOS()}, nil
}

func (b *backends) Close() {
	for _, closer := range b.closers {
		if err := closer(); err != nil {
			b.logger.Debug("close backend", zap.Error(err))
		}
	}
	_ = b.logger.Sync()
}

// client is the raw OpenAI-compatible client; it needs an API key.
func (b *backends) client() (completion.Client, error) {
	apiKey, err := b.root.Common.APIKey()
	if err != nil {
		return completion.Client{}, fmt.Errorf(missingAPIKeyErrorFormat, err)
	}
	endpoint := strings.TrimSpace(b.root.Common.API.Endpoint)
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	return completion.Client{BaseURL: endpoint, APIKey: apiKey, HTTPClient: &http.Client{}}, nil
}

// completer decorates the client with the configured rate limit and, when
// enabled, the Redis response cache.
func (b *backends) completer() (completion.Completer, error) {
	client, err := b.client()
	if err != nil {
		return nil, err
	}
	rateLimit := b.root.Common.RateLimit
	var completer completion.Completer = completion.NewRateLimited(client, rateLimit.RequestsPerSecond, rateLimit.Burst)

	cache := b.root.Common.Cache
	if cache.Enabled {
		redisClient := completion.NewRedisClient(completion.RedisOptions{
			Address:  cache.Address,
			Password: cache.Password,
			DB:       cache.DB,
		})
		b.closers = append(b.closers, redisClient.Close)
		completer = completion.NewCache(completer, redisClient, b.root.Common.CacheTTL(), b.logger)
		b.logger.Debug("completion cache enabled", zap.String("address", cache.Address))
	}
	return completer, nil
}

// indexSource opens configured indexes on demand.
func (b *backends) indexSource() tasks.IndexSource {
	return func(ctx context.Context, name string) (vectorstore.Index, error) {
		indexConfiguration, ok := b.root.FindIndex(name)
		if !ok {
			return nil, fmt.Errorf(unknownIndexErrorFormat, name)
		}
		switch indexConfiguration.Provider {
		case config.IndexProviderWeaviate:
			return b.weaviateIndex(indexConfiguration)
		default:
			return b.memoryIndex(ctx, indexConfiguration)
		}
	}
}

func (b *backends) memoryIndex(ctx context.Context, indexConfiguration config.Index) (vectorstore.Index, error) {
	var embedder vectorstore.Embedder = vectorstore.HashEmbedder{Dimensions: indexConfiguration.Dimensions}
	if indexConfiguration.Embedder == config.EmbedderOpenAI {
		client, err := b.client()
		if err != nil {
			return nil, fmt.Errorf(indexOpenErrorFormat, indexConfiguration.Name, err)
		}
		model, _ := b.root.DefaultModel()
		embedder = completion.Embedder{Client: client, Model: model.EmbeddingModel}
	}

	documents, err := vectorstore.LoadDocuments(b.fileSystem, indexConfiguration.Documents)
	if err != nil {
		return nil, fmt.Errorf(documentsLoadErrorFormat, indexConfiguration.Name, err)
	}
	index := vectorstore.NewMemoryIndex(embedder)
	if _, err := index.Add(ctx, documents...); err != nil {
		return nil, fmt.Errorf(indexOpenErrorFormat, indexConfiguration.Name, err)
	}
	b.logger.Info("index loaded",
		zap.String("index", indexConfiguration.Name),
		zap.String("documents", indexConfiguration.Documents),
		zap.Int("count", index.Len()),
	)
	return index, nil
}

func (b *backends) weaviateIndex(indexConfiguration config.Index) (vectorstore.Index, error) {
	apiKey, err := indexConfiguration.APIKey()
	if err != nil {
		return nil, fmt.Errorf(indexOpenErrorFormat, indexConfiguration.Name, err)
	}
	settings := indexConfiguration.Weaviate
	index, err := vectorstore.NewWeaviateIndex(vectorstore.WeaviateConfig{
		Host:       settings.Host,
		Scheme:     settings.Scheme,
		APIKey:     apiKey,
		ClassName:  settings.ClassName,
		Properties: settings.Properties,
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf(indexOpenErrorFormat, indexConfiguration.Name, err)
	}
	return index, nil
}
