package analyses

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

func TestWALStoreSaveAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	events := []domain.AnalysisEvent{
		{Token: "bitcoin", CurrentPrice: decimal.NewFromInt(60000), TargetPrice: decimal.NewFromInt(65000), Text: "hold", Timestamp: 1},
		{Token: "ethereum", CurrentPrice: decimal.NewFromInt(3000), TargetPrice: decimal.NewFromInt(4000), Text: "buy", Timestamp: 2},
	}
	for _, event := range events {
		require.NoError(t, store.Save(event))
	}

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bitcoin", records[0].Event.Token)
	assert.Equal(t, "buy", records[1].Event.Text)
	assert.Less(t, records[0].Index, records[1].Index)
}

func TestWALStoreEventsAfterSkipsOlderRecords(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(domain.AnalysisEvent{Token: "bitcoin", Text: "first", Timestamp: 1}))
	require.NoError(t, store.Save(domain.AnalysisEvent{Token: "bitcoin", Text: "second", Timestamp: 2}))

	first, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, first, 2)

	later, err := store.EventsAfter(first[0].Index)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "second", later[0].Event.Text)
}

func TestWALStoreRejectsEventWithoutToken(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Save(domain.AnalysisEvent{Text: "no token"})
	require.Error(t, err)
}
