package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
)

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is an entry stored in a MemoryIndex. Text is what gets embedded;
// Payload is what lookups decode. When Payload is empty the document itself
// is stored as the payload.
type Document struct {
	ID      string          `json:"id"`
	Text    string          `json:"text"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type memoryEntry struct {
	vector  []float32
	payload json.RawMessage
}

// MemoryIndex is an in-process cosine-similarity index.
type MemoryIndex struct {
	embedder Embedder
	mu       sync.RWMutex
	entries  map[string]memoryEntry
}

// NewMemoryIndex builds an empty index that embeds documents and queries with embedder.
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, entries: map[string]memoryEntry{}}
}

// Add embeds and upserts documents. Documents without an ID get a random one.
// It returns the IDs in input order.
func (m *MemoryIndex) Add(ctx context.Context, documents ...Document) ([]string, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	texts := make([]string, len(documents))
	for i, document := range documents {
		texts[i] = document.Text
	}
	vectors, embedErr := m.embedder.Embed(ctx, texts)
	if embedErr != nil {
		return nil, &Error{Kind: KindUnavailable, Op: addOperation, Err: embedErr}
	}
	if len(vectors) != len(documents) {
		return nil, &Error{Kind: KindUnavailable, Op: addOperation, Err: fmt.Errorf("%w: want %d, got %d", ErrEmbeddingMismatch, len(documents), len(vectors))}
	}

	ids := make([]string, len(documents))
	staged := make(map[string]memoryEntry, len(documents))
	for i, document := range documents {
		id := strings.TrimSpace(document.ID)
		if id == "" {
			id = uuid.NewString()
		}
		payload := document.Payload
		if len(payload) == 0 {
			document.ID = id
			encoded, marshalErr := json.Marshal(document)
			if marshalErr != nil {
				return nil, &Error{Kind: KindInvalidRequest, Op: addOperation, ID: id, Err: marshalErr}
			}
			payload = encoded
		}
		ids[i] = id
		staged[id] = memoryEntry{vector: append([]float32(nil), vectors[i]...), payload: append(json.RawMessage(nil), payload...)}
	}

	m.mu.Lock()
	for id, entry := range staged {
		m.entries[id] = entry
	}
	m.mu.Unlock()
	return ids, nil
}

// Len returns the number of stored documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TopN returns up to n matches ordered by descending cosine similarity, ties by ID.
func (m *MemoryIndex) TopN(ctx context.Context, query string, n int) ([]Match, error) {
	ranked, err := m.rank(ctx, topNOperation, query, n)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, len(ranked))
	for i, hit := range ranked {
		matches[i] = Match{Score: hit.score, ID: hit.id, Payload: append(json.RawMessage(nil), hit.payload...)}
	}
	return matches, nil
}

// TopNIDs is TopN without payloads.
func (m *MemoryIndex) TopNIDs(ctx context.Context, query string, n int) ([]IDMatch, error) {
	ranked, err := m.rank(ctx, topNIDsOperation, query, n)
	if err != nil {
		return nil, err
	}
	matches := make([]IDMatch, len(ranked))
	for i, hit := range ranked {
		matches[i] = IDMatch{Score: hit.score, ID: hit.id}
	}
	return matches, nil
}

type rankedHit struct {
	id      string
	score   float64
	payload json.RawMessage
}

func (m *MemoryIndex) rank(ctx context.Context, operation string, query string, n int) ([]rankedHit, error) {
	if n < 0 {
		return nil, &Error{Kind: KindInvalidRequest, Op: operation, Err: fmt.Errorf("%w: %d", ErrInvalidCount, n)}
	}
	if n == 0 {
		return nil, nil
	}
	vectors, embedErr := m.embedder.Embed(ctx, []string{query})
	if embedErr != nil {
		return nil, &Error{Kind: KindUnavailable, Op: operation, Err: embedErr}
	}
	if len(vectors) != 1 {
		return nil, &Error{Kind: KindUnavailable, Op: operation, Err: fmt.Errorf("%w: want 1, got %d", ErrEmbeddingMismatch, len(vectors))}
	}
	queryVector := vectors[0]

	m.mu.RLock()
	hits := make([]rankedHit, 0, len(m.entries))
	for id, entry := range m.entries {
		hits = append(hits, rankedHit{id: id, score: cosine(queryVector, entry.vector), payload: entry.payload})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if n < len(hits) {
		hits = hits[:n]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	length := min(len(a), len(b))
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashEmbedder is an offline bag-of-words embedder. Each lower-cased word is
// hashed into one of Dimensions buckets and the result is L2-normalized.
type HashEmbedder struct {
	Dimensions int
}

const defaultHashDimensions = 256

func (h HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dimensions := h.Dimensions
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, dimensions)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), isWordSeparator) {
			hasher := fnv.New32a()
			_, _ = hasher.Write([]byte(word))
			vector[int(hasher.Sum32()%uint32(dimensions))]++
		}
		var sumSquares float64
		for _, value := range vector {
			sumSquares += float64(value) * float64(value)
		}
		if sumSquares > 0 {
			norm := float32(1 / math.Sqrt(sumSquares))
			for j := range vector {
				vector[j] *= norm
			}
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
