package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

const (
	defaultWeaviateScheme = "http"
	additionalFieldName   = "_additional"
	graphQLGetKey         = "Get"

	weaviateClientErrorFormat  = "weaviate client: %w"
	weaviateGraphQLErrorFormat = "weaviate graphql: %s"
	weaviateShapeErrorFormat   = "weaviate response: %s"
)

var (
	// ErrWeaviateHostMissing is returned when no host is configured.
	ErrWeaviateHostMissing = errors.New("weaviate host is required")
	// ErrWeaviateClassMissing is returned when no class name is configured.
	ErrWeaviateClassMissing = errors.New("weaviate class name is required")
)

// WeaviateConfig describes one Weaviate class used as an index.
// Properties are the object fields copied into each match payload.
type WeaviateConfig struct {
	Host       string
	Scheme     string
	APIKey     string
	ClassName  string
	Properties []string
}

// WeaviateIndex answers TopN with a nearText GraphQL query. The score is the
// reported certainty, or 1 - distance when the class has no certainty.
type WeaviateIndex struct {
	client     *weaviate.Client
	className  string
	properties []string
	logger     *zap.Logger
}

// NewWeaviateIndex builds the client; it performs no network I/O.
func NewWeaviateIndex(config WeaviateConfig, logger *zap.Logger) (*WeaviateIndex, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, ErrWeaviateHostMissing
	}
	if strings.TrimSpace(config.ClassName) == "" {
		return nil, ErrWeaviateClassMissing
	}
	scheme := config.Scheme
	if scheme == "" {
		scheme = defaultWeaviateScheme
	}
	clientConfig := weaviate.Config{Host: config.Host, Scheme: scheme}
	if config.APIKey != "" {
		clientConfig.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}
	client, err := weaviate.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf(weaviateClientErrorFormat, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeaviateIndex{
		client:     client,
		className:  config.ClassName,
		properties: append([]string(nil), config.Properties...),
		logger:     logger,
	}, nil
}

func (w *WeaviateIndex) TopN(ctx context.Context, query string, n int) ([]Match, error) {
	items, err := w.nearText(ctx, topNOperation, query, n, true)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(items))
	for _, item := range items {
		payload, marshalErr := json.Marshal(item.properties)
		if marshalErr != nil {
			return nil, &Error{Kind: KindDecode, Op: topNOperation, ID: item.id, Err: marshalErr}
		}
		matches = append(matches, Match{Score: item.score, ID: item.id, Payload: payload})
	}
	return matches, nil
}

func (w *WeaviateIndex) TopNIDs(ctx context.Context, query string, n int) ([]IDMatch, error) {
	items, err := w.nearText(ctx, topNIDsOperation, query, n, false)
	if err != nil {
		return nil, err
	}
	matches := make([]IDMatch, 0, len(items))
	for _, item := range items {
		matches = append(matches, IDMatch{Score: item.score, ID: item.id})
	}
	return matches, nil
}

type weaviateItem struct {
	id         string
	score      float64
	properties map[string]any
}

func (w *WeaviateIndex) nearText(ctx context.Context, operation string, query string, n int, withProperties bool) ([]weaviateItem, error) {
	if n < 0 {
		return nil, &Error{Kind: KindInvalidRequest, Op: operation, Err: fmt.Errorf("%w: %d", ErrInvalidCount, n)}
	}
	if n == 0 {
		return nil, nil
	}

	fields := make([]graphql.Field, 0, len(w.properties)+1)
	if withProperties {
		for _, property := range w.properties {
			fields = append(fields, graphql.Field{Name: property})
		}
	}
	fields = append(fields, graphql.Field{Name: additionalFieldName, Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
		{Name: "distance"},
	}})

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearText((&graphql.NearTextArgumentBuilder{}).WithConcepts([]string{query})).
		WithFields(fields...).
		WithLimit(n).
		Do(ctx)
	if err != nil {
		w.logger.Warn("weaviate query failed", zap.String("class", w.className), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindQuery, Op: operation, Err: ctxErr}
		}
		return nil, &Error{Kind: KindUnavailable, Op: operation, Err: err}
	}
	if len(result.Errors) > 0 {
		message := graphQLErrorMessages(result.Errors)
		w.logger.Warn("weaviate query rejected", zap.String("class", w.className), zap.String("errors", message))
		return nil, &Error{Kind: KindQuery, Op: operation, Err: fmt.Errorf(weaviateGraphQLErrorFormat, message)}
	}
	return w.parseItems(operation, result)
}

func (w *WeaviateIndex) parseItems(operation string, result *models.GraphQLResponse) ([]weaviateItem, error) {
	get, ok := result.Data[graphQLGetKey].(map[string]any)
	if !ok {
		return nil, &Error{Kind: KindUnavailable, Op: operation, Err: fmt.Errorf(weaviateShapeErrorFormat, "missing Get")}
	}
	rawItems, ok := get[w.className].([]any)
	if !ok {
		// A class with no objects answers with null.
		return nil, nil
	}

	items := make([]weaviateItem, 0, len(rawItems))
	for _, rawItem := range rawItems {
		object, ok := rawItem.(map[string]any)
		if !ok {
			return nil, &Error{Kind: KindDecode, Op: operation, Err: fmt.Errorf(weaviateShapeErrorFormat, "object is not a map")}
		}
		item := weaviateItem{properties: map[string]any{}}
		if additional, ok := object[additionalFieldName].(map[string]any); ok {
			item.id, _ = additional["id"].(string)
			if certainty, ok := additional["certainty"].(float64); ok {
				item.score = certainty
			} else if distance, ok := additional["distance"].(float64); ok {
				item.score = 1 - distance
			}
		}
		for key, value := range object {
			if key != additionalFieldName {
				item.properties[key] = value
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func graphQLErrorMessages(graphQLErrors []*models.GraphQLError) string {
	messages := make([]string, 0, len(graphQLErrors))
	for _, graphQLError := range graphQLErrors {
		if graphQLError != nil {
			messages = append(messages, graphQLError.Message)
		}
	}
	return strings.Join(messages, "; ")
}
