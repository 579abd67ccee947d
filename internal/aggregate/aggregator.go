package aggregate

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/firewx/climo/internal/climo"
	"github.com/firewx/climo/internal/redis"
	"github.com/firewx/climo/internal/stats"
	"github.com/firewx/climo/internal/types"
)

// A blow-up reaching less than this height above ground is a non-event:
// its timing is pushed to +Inf and its height to -Inf so non-events pool
// at the extreme ends of both distributions.
const blowUpMinHeightM = 1000

// RecordStore is the database surface the aggregator needs.
type RecordStore interface {
	ClimateRecordsFor(ctx context.Context, site, model string) ([]*types.ClimateRecord, error)
	ReplaceDecileRows(ctx context.Context, site, model string, rows []*types.DecileRow) error
	SiteModelPairs() ([]types.SiteModel, error)
}

// Cache is the optional decile cache surface.
type Cache interface {
	CacheDecileRow(ctx context.Context, row *types.DecileRow) error
	DeletePairDeciles(ctx context.Context, site, model string) error
	SetBuildMarker(ctx context.Context, site, model string, marker *redis.BuildMarker) error
}

// PairError reports a failed station/model pair. One pair failing never
// aborts the rest of the run.
type PairError struct {
	Pair types.SiteModel
	Err  error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("pair %s: %v", e.Pair, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }

// Aggregator rebuilds decile distributions for station/model pairs. Pairs
// are independent: each build owns its own in-memory buckets and writes
// through one transaction, so concurrent builds never observe each other's
// partial state.
type Aggregator struct {
	store   RecordStore
	cache   Cache
	stats   *stats.Stats
	workers int
}

// New creates an Aggregator. cache may be nil to skip cache refreshes.
func New(store RecordStore, cache Cache, st *stats.Stats, workers int) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		store:   store,
		cache:   cache,
		stats:   st,
		workers: workers,
	}
}

// Run rebuilds every pair, fanning the work out over the worker pool.
// Returned errors are per-pair; a nil slice means every pair succeeded.
func (a *Aggregator) Run(ctx context.Context, pairs []types.SiteModel) []*PairError {
	work := make(chan types.SiteModel)
	results := make(chan *PairError)

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range work {
				if err := a.BuildPair(ctx, pair); err != nil {
					a.stats.IncrementPairsFailed()
					results <- &PairError{Pair: pair, Err: err}
					continue
				}
				a.stats.IncrementPairsBuilt()
				results <- nil
			}
		}()
	}

	go func() {
		defer close(work)
		for _, pair := range pairs {
			select {
			case <-ctx.Done():
				return
			case work <- pair:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var failures []*PairError
	for res := range results {
		if res != nil {
			log.Printf("Aggregation failed: %v", res)
			failures = append(failures, res)
		}
	}
	return failures
}

// BuildPair recomputes and replaces the full decile set for one
// station/model pair. Cancelling the context rolls the write back, leaving
// the stored distributions unchanged.
func (a *Aggregator) BuildPair(ctx context.Context, pair types.SiteModel) error {
	records, err := a.store.ClimateRecordsFor(ctx, pair.Site, pair.Model)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	a.stats.AddRecordsRead(uint64(len(records)))

	rows, emptyBlobs, err := BuildDecileRows(pair, records)
	if err != nil {
		return err
	}

	if err := a.store.ReplaceDecileRows(ctx, pair.Site, pair.Model, rows); err != nil {
		return fmt.Errorf("failed to replace decile rows: %w", err)
	}
	a.stats.AddBucketsWritten(uint64(len(rows)))
	a.stats.AddEmptyBuckets(emptyBlobs)

	a.refreshCache(ctx, pair, rows)
	return nil
}

// refreshCache best-effort updates the decile cache after a commit. The
// pair's old keys are dropped first so buckets absent from the new set are
// never served stale. Cache failures are logged, never fatal: the database
// already holds the truth.
func (a *Aggregator) refreshCache(ctx context.Context, pair types.SiteModel, rows []*types.DecileRow) {
	if a.cache == nil {
		return
	}
	if err := a.cache.DeletePairDeciles(ctx, pair.Site, pair.Model); err != nil {
		log.Printf("Warning: failed to drop stale deciles for %s: %v", pair, err)
		return
	}
	for _, row := range rows {
		if err := a.cache.CacheDecileRow(ctx, row); err != nil {
			log.Printf("Warning: failed to cache deciles for %s: %v", pair, err)
			break
		}
	}
	marker := &redis.BuildMarker{
		RunID:   a.stats.RunID(),
		BuiltAt: time.Now(),
		Buckets: len(rows),
	}
	if err := a.cache.SetBuildMarker(ctx, pair.Site, pair.Model, marker); err != nil {
		log.Printf("Warning: failed to set build marker for %s: %v", pair, err)
	}
}

// bucketSamples collects the per-element sample values of one bucket.
type bucketSamples struct {
	values [types.NumElements][]float64
}

// BuildDecileRows partitions records into (day_of_year, hour_of_day)
// buckets and computes the decile vector of every element in every bucket.
// Null index values are excluded per element; a bucket whose element has no
// samples gets an explicit empty blob. Rows come back ordered by bucket so
// repeated runs on the same input are byte-identical.
func BuildDecileRows(pair types.SiteModel, records []*types.ClimateRecord) ([]*types.DecileRow, uint64, error) {
	buckets := make(map[climo.Bucket]*bucketSamples)

	for _, rec := range records {
		bucket, err := climo.BucketOf(rec)
		if err != nil {
			return nil, 0, fmt.Errorf("record at %s: %w", rec.ValidTime.Format(time.RFC3339), err)
		}

		samples := buckets[bucket]
		if samples == nil {
			samples = &bucketSamples{}
			buckets[bucket] = samples
		}

		hdw, dt, height, dcape := indexValues(rec)
		appendSample(samples, types.HDW, hdw)
		appendSample(samples, types.BlowUpDt, dt)
		appendSample(samples, types.BlowUpHeight, height)
		appendSample(samples, types.DCAPE, dcape)
	}

	keys := make([]climo.Bucket, 0, len(buckets))
	for bucket := range buckets {
		keys = append(keys, bucket)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].DayOfYear != keys[j].DayOfYear {
			return keys[i].DayOfYear < keys[j].DayOfYear
		}
		return keys[i].HourOfDay < keys[j].HourOfDay
	})

	var emptyBlobs uint64
	rows := make([]*types.DecileRow, 0, len(keys))
	for _, bucket := range keys {
		row := &types.DecileRow{
			Site:      pair.Site,
			Model:     pair.Model,
			DayOfYear: bucket.DayOfYear,
			HourOfDay: bucket.HourOfDay,
		}
		for _, element := range types.Elements {
			deciles := climo.NewDistribution(buckets[bucket].values[element]).Deciles()
			if deciles.IsEmpty() {
				emptyBlobs++
			}
			row.SetBlob(element, climo.EncodeDeciles(deciles))
		}
		rows = append(rows, row)
	}
	return rows, emptyBlobs, nil
}

// indexValues extracts the record's nullable indices, applying the blow-up
// non-event sentinel transform.
func indexValues(rec *types.ClimateRecord) (hdw, dt, height, dcape *float64) {
	hdw, dt, height, dcape = rec.HDW, rec.BlowUpDt, rec.BlowUpHeight, rec.DCAPE

	if height != nil && *height < blowUpMinHeightM {
		posInf := math.Inf(1)
		negInf := math.Inf(-1)
		if dt != nil {
			dt = &posInf
		}
		height = &negInf
	}
	return hdw, dt, height, dcape
}

func appendSample(samples *bucketSamples, element types.Element, v *float64) {
	if v == nil {
		return
	}
	samples.values[element] = append(samples.values[element], *v)
}

// DiscoverPairs resolves the pairs to aggregate: the configured site/model
// lists when given, otherwise every pair present in the record store.
func DiscoverPairs(store RecordStore, sites, models []string) ([]types.SiteModel, error) {
	if len(sites) > 0 && len(models) > 0 {
		pairs := make([]types.SiteModel, 0, len(sites)*len(models))
		for _, site := range sites {
			for _, model := range models {
				pairs = append(pairs, types.SiteModel{Site: site, Model: model})
			}
		}
		return pairs, nil
	}

	pairs, err := store.SiteModelPairs()
	if err != nil {
		return nil, fmt.Errorf("failed to list site/model pairs: %w", err)
	}

	if len(sites) > 0 {
		pairs = filterPairs(pairs, sites, func(p types.SiteModel) string { return p.Site })
	}
	if len(models) > 0 {
		pairs = filterPairs(pairs, models, func(p types.SiteModel) string { return p.Model })
	}
	return pairs, nil
}

func filterPairs(pairs []types.SiteModel, allowed []string, key func(types.SiteModel) string) []types.SiteModel {
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	out := pairs[:0]
	for _, p := range pairs {
		if set[key(p)] {
			out = append(out, p)
		}
	}
	return out
}
