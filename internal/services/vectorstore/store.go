// Package vectorstore keeps prior analysis texts in a similarity index
// and retrieves the closest ones for a token.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vkuzmin/cryptosage/internal/clients"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"go.uber.org/zap"
)

const (
	// upsertChunkSize is the index's per-request item limit.
	upsertChunkSize = 100

	millisPerDay = 24 * 60 * 60 * 1000
)

type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type index interface {
	Upsert(ctx context.Context, vectors []clients.Vector) error
	Query(ctx context.Context, vector []float32, topK int) ([]clients.Match, error)
	DeleteByFilter(ctx context.Context, filter map[string]any) error
}

// Item is one text to add in a batch.
type Item struct {
	Token string
	Text  string
}

// Store derives embeddings through the embedder and persists documents
// in the similarity index.
type Store struct {
	embedder embedder
	index    index
	logger   *zap.Logger
	now      func() time.Time
}

func NewStore(embedder embedder, index index, logger *zap.Logger) *Store {
	return &Store{embedder: embedder, index: index, logger: logger, now: time.Now}
}

// Query returns the text of up to topK documents closest to the token,
// in relevance order. Matches without metadata are silently dropped.
func (s *Store) Query(ctx context.Context, token string, topK int) ([]string, error) {
	vector, err := s.embedder.Embed(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "embed query")
	}

	matches, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, errors.Wrap(err, "query similarity index")
	}

	texts := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Metadata == nil {
			continue
		}
		text, ok := match.Metadata["text"].(string)
		if !ok {
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// Add embeds text and upserts it as a new document tagged with token.
func (s *Store) Add(ctx context.Context, token, text string) error {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return errors.Wrap(err, "embed document")
	}

	if err := s.index.Upsert(ctx, []clients.Vector{s.record(token, text, vector)}); err != nil {
		return errors.Wrap(err, "upsert document")
	}

	s.logger.Info("added document to similarity index", zap.String("token", token))
	return nil
}

// BatchAdd embeds and upserts the items in chunks that respect the
// index's per-request limit, preserving input order within each chunk.
// A failed chunk aborts the remaining ones.
func (s *Store) BatchAdd(ctx context.Context, items []Item) error {
	vectors := make([]clients.Vector, 0, len(items))
	for _, item := range items {
		vector, err := s.embedder.Embed(ctx, item.Text)
		if err != nil {
			return errors.Wrapf(err, "embed document for %s", item.Token)
		}
		vectors = append(vectors, s.record(item.Token, item.Text, vector))
	}

	for start := 0; start < len(vectors); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(vectors))
		if err := s.index.Upsert(ctx, vectors[start:end]); err != nil {
			return errors.Wrapf(err, "upsert chunk starting at %d", start)
		}
	}

	s.logger.Info("batch added documents to similarity index", zap.Int("count", len(vectors)))
	return nil
}

// DeleteOlderThan bulk-deletes every document for token whose timestamp
// is strictly older than ageDays.
func (s *Store) DeleteOlderThan(ctx context.Context, token string, ageDays int) error {
	cutoff := s.now().UnixMilli() - int64(ageDays)*millisPerDay

	filter := map[string]any{
		"token":     map[string]any{"$eq": token},
		"timestamp": map[string]any{"$lt": cutoff},
	}
	if err := s.index.DeleteByFilter(ctx, filter); err != nil {
		return errors.Wrap(err, "delete old documents")
	}

	s.logger.Info("deleted old documents", zap.String("token", token), zap.Int("age_days", ageDays))
	return nil
}

// record builds an index record with an identifier unique per call,
// so rapid repeated adds for one token never collide.
func (s *Store) record(token, text string, vector []float32) clients.Vector {
	doc := domain.ContextDocument{Text: text, Token: token, Timestamp: s.now().UnixMilli()}
	return clients.Vector{
		ID:     fmt.Sprintf("%s-%d-%s", token, doc.Timestamp, uuid.NewString()),
		Values: vector,
		Metadata: map[string]any{
			"text":      doc.Text,
			"token":     doc.Token,
			"timestamp": doc.Timestamp,
		},
	}
}
