// Package analyses persists produced recommendations in a WAL-backed
// journal for recovery and dashboard streaming.
package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

const (
	defaultAnalysisDir   = "./wal/analyses"
	analysisSegmentLimit = 1000
	analysisMaxSegments  = 10
	analysisKeyPrefix    = "analysis_"
)

// WALStore is an append-only journal of analysis events.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under the provided
// directory (or a default when empty).
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultAnalysisDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "analysis_",
		SegmentThreshold: analysisSegmentLimit,
		MaxSegments:      analysisMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init analysis WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the analysis event to the journal. Callers must ensure
// event.Token is set.
func (s *WALStore) Save(event domain.AnalysisEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("analysis store is not initialized")
	}
	if event.Token == "" {
		return fmt.Errorf("analysis event token is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal analysis event")
	}

	key := fmt.Sprintf("%s%s", analysisKeyPrefix, event.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all analysis events written after the provided
// journal index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.AnalysisEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("analysis store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.AnalysisEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		// an absent index yields an empty key and no error
		key, payload, err := s.wal.Get(idx)
		if err != nil || key == "" || !strings.HasPrefix(key, analysisKeyPrefix) {
			continue
		}
		var event domain.AnalysisEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode analysis event")
		}
		records = append(records, domain.AnalysisEventRecord{
			Index: idx,
			Event: event,
		})
	}

	return records, nil
}

// Close flushes and closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
