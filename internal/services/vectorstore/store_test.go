package vectorstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkuzmin/cryptosage/internal/clients"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	upserts    [][]clients.Vector
	matches    []clients.Match
	filter     map[string]any
	upsertErr  error
	failAtCall int
}

func (f *fakeIndex) Upsert(ctx context.Context, vectors []clients.Vector) error {
	f.upserts = append(f.upserts, vectors)
	if f.upsertErr != nil && len(f.upserts) >= f.failAtCall {
		return f.upsertErr
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]clients.Match, error) {
	return f.matches, nil
}

func (f *fakeIndex) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	f.filter = filter
	return nil
}

func newTestStore(embedder *fakeEmbedder, index *fakeIndex) *Store {
	return NewStore(embedder, index, zap.NewNop())
}

func TestQueryReturnsTextsInRelevanceOrder(t *testing.T) {
	index := &fakeIndex{matches: []clients.Match{
		{ID: "a", Score: 0.95, Metadata: map[string]any{"text": "closest"}},
		{ID: "b", Score: 0.80, Metadata: map[string]any{"text": "second"}},
	}}
	store := newTestStore(&fakeEmbedder{}, index)

	texts, err := store.Query(context.Background(), "bitcoin", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"closest", "second"}, texts)
}

func TestQueryDropsMatchesWithoutMetadata(t *testing.T) {
	index := &fakeIndex{matches: []clients.Match{
		{ID: "a", Metadata: map[string]any{"text": "kept"}},
		{ID: "b", Metadata: nil},
		{ID: "c", Metadata: map[string]any{"token": "bitcoin"}},
	}}
	store := newTestStore(&fakeEmbedder{}, index)

	texts, err := store.Query(context.Background(), "bitcoin", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, texts)
}

func TestQueryEmbeddingFailurePropagates(t *testing.T) {
	store := newTestStore(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeIndex{})

	_, err := store.Query(context.Background(), "bitcoin", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestAddGeneratesUniqueIDsForRapidCalls(t *testing.T) {
	index := &fakeIndex{}
	store := newTestStore(&fakeEmbedder{}, index)

	require.NoError(t, store.Add(context.Background(), "bitcoin", "analysis one"))
	require.NoError(t, store.Add(context.Background(), "bitcoin", "analysis two"))

	require.Len(t, index.upserts, 2)
	assert.NotEqual(t, index.upserts[0][0].ID, index.upserts[1][0].ID)
}

func TestAddStoresMetadataFields(t *testing.T) {
	index := &fakeIndex{}
	store := newTestStore(&fakeEmbedder{}, index)
	store.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	require.NoError(t, store.Add(context.Background(), "bitcoin", "the analysis"))

	require.Len(t, index.upserts, 1)
	metadata := index.upserts[0][0].Metadata
	assert.Equal(t, "the analysis", metadata["text"])
	assert.Equal(t, "bitcoin", metadata["token"])
	assert.Equal(t, int64(1_700_000_000_000), metadata["timestamp"])
}

func TestBatchAddChunksOf100PreservingOrder(t *testing.T) {
	index := &fakeIndex{}
	store := newTestStore(&fakeEmbedder{}, index)

	items := make([]Item, 250)
	for i := range items {
		items[i] = Item{Token: "bitcoin", Text: fmt.Sprintf("analysis %d", i)}
	}

	require.NoError(t, store.BatchAdd(context.Background(), items))

	require.Len(t, index.upserts, 3)
	assert.Len(t, index.upserts[0], 100)
	assert.Len(t, index.upserts[1], 100)
	assert.Len(t, index.upserts[2], 50)

	assert.Equal(t, "analysis 0", index.upserts[0][0].Metadata["text"])
	assert.Equal(t, "analysis 99", index.upserts[0][99].Metadata["text"])
	assert.Equal(t, "analysis 100", index.upserts[1][0].Metadata["text"])
	assert.Equal(t, "analysis 249", index.upserts[2][49].Metadata["text"])
}

func TestBatchAddAbortsRemainingChunksOnFailure(t *testing.T) {
	index := &fakeIndex{upsertErr: errors.New("index down"), failAtCall: 2}
	store := newTestStore(&fakeEmbedder{}, index)

	items := make([]Item, 250)
	for i := range items {
		items[i] = Item{Token: "bitcoin", Text: fmt.Sprintf("analysis %d", i)}
	}

	err := store.BatchAdd(context.Background(), items)
	require.Error(t, err)
	assert.Len(t, index.upserts, 2)
}

func TestDeleteOlderThanBuildsFilteredBulkDelete(t *testing.T) {
	index := &fakeIndex{}
	store := newTestStore(&fakeEmbedder{}, index)

	now := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return now }

	require.NoError(t, store.DeleteOlderThan(context.Background(), "BTC", 30))

	require.NotNil(t, index.filter)
	assert.Equal(t, map[string]any{"$eq": "BTC"}, index.filter["token"])
	assert.Equal(t, map[string]any{"$lt": now.UnixMilli() - int64(30)*millisPerDay}, index.filter["timestamp"])
}
