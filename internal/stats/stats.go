package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/firewx/climo/internal/types"
	"github.com/google/uuid"
)

// RunStore persists aggregation run summaries.
type RunStore interface {
	StoreAggregationRun(run *types.AggregationRun) error
}

// Stats tracks ingestion and aggregation counters for one process.
type Stats struct {
	RecordsIngested uint64
	RecordsFailed   uint64
	LocationsAdded  uint64

	PairsBuilt     uint64
	PairsFailed    uint64
	RecordsRead    uint64
	BucketsWritten uint64
	EmptyBuckets   uint64

	runID     string
	startedAt time.Time

	store RunStore
	mu    sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}
}

// RunID returns the unique id for this process run.
func (s *Stats) RunID() string { return s.runID }

// SetStore sets the store used for run persistence.
func (s *Stats) SetStore(store RunStore) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

func (s *Stats) IncrementRecordsIngested() { atomic.AddUint64(&s.RecordsIngested, 1) }
func (s *Stats) IncrementRecordsFailed()   { atomic.AddUint64(&s.RecordsFailed, 1) }
func (s *Stats) IncrementLocationsAdded()  { atomic.AddUint64(&s.LocationsAdded, 1) }
func (s *Stats) IncrementPairsBuilt()      { atomic.AddUint64(&s.PairsBuilt, 1) }
func (s *Stats) IncrementPairsFailed()     { atomic.AddUint64(&s.PairsFailed, 1) }

func (s *Stats) AddRecordsRead(n uint64)    { atomic.AddUint64(&s.RecordsRead, n) }
func (s *Stats) AddBucketsWritten(n uint64) { atomic.AddUint64(&s.BucketsWritten, n) }
func (s *Stats) AddEmptyBuckets(n uint64)   { atomic.AddUint64(&s.EmptyBuckets, n) }

// Snapshot returns a run summary of the current counters.
func (s *Stats) Snapshot() *types.AggregationRun {
	return &types.AggregationRun{
		RunID:          s.runID,
		StartedAt:      s.startedAt,
		FinishedAt:     time.Now(),
		PairsBuilt:     atomic.LoadUint64(&s.PairsBuilt),
		PairsFailed:    atomic.LoadUint64(&s.PairsFailed),
		RecordsRead:    atomic.LoadUint64(&s.RecordsRead),
		BucketsWritten: atomic.LoadUint64(&s.BucketsWritten),
		EmptyBuckets:   atomic.LoadUint64(&s.EmptyBuckets),
	}
}

// Persist stores the current run summary.
func (s *Stats) Persist() error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return fmt.Errorf("run store not set")
	}
	return store.StoreAggregationRun(s.Snapshot())
}

// String renders the counters for periodic logging.
func (s *Stats) String() string {
	return fmt.Sprintf(
		"run=%s ingested=%d failed=%d locations=%d pairs_built=%d pairs_failed=%d records_read=%d buckets=%d empty=%d",
		s.runID,
		atomic.LoadUint64(&s.RecordsIngested),
		atomic.LoadUint64(&s.RecordsFailed),
		atomic.LoadUint64(&s.LocationsAdded),
		atomic.LoadUint64(&s.PairsBuilt),
		atomic.LoadUint64(&s.PairsFailed),
		atomic.LoadUint64(&s.RecordsRead),
		atomic.LoadUint64(&s.BucketsWritten),
		atomic.LoadUint64(&s.EmptyBuckets),
	)
}

// LogPeriodically writes the counters to the logger at the given interval
// until the context is cancelled.
func (s *Stats) LogPeriodically(ctx context.Context, interval time.Duration, logf func(format string, v ...interface{})) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logf("stats: %s", s.String())
		}
	}
}
