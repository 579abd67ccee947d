package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/firewx/climo/internal/config"
	"github.com/firewx/climo/internal/db"
	"github.com/firewx/climo/internal/nats"
	"github.com/firewx/climo/internal/stats"
	"github.com/firewx/climo/internal/types"
)

// DBClient interface for testability
type DBClient interface {
	UpsertClimateRecords(records []*types.ClimateRecord) error
	UpsertLocation(loc *types.Location) error
	Close() error
}

// Ingestor buffers incoming climate records and flushes them to the
// database in transactional batches.
type Ingestor struct {
	db      DBClient
	stats   *stats.Stats
	bufSize int

	mu     sync.Mutex
	buffer []*types.ClimateRecord
}

// NewIngestor creates an ingestor flushing at bufSize records.
func NewIngestor(dbClient DBClient, bufSize int) *Ingestor {
	return &Ingestor{
		db:      dbClient,
		stats:   stats.New(),
		bufSize: bufSize,
		buffer:  make([]*types.ClimateRecord, 0, bufSize),
	}
}

// HandleRecord queues one climate record, flushing when the buffer fills.
func (i *Ingestor) HandleRecord(rec *types.ClimateRecord) {
	i.mu.Lock()
	i.buffer = append(i.buffer, rec)
	full := len(i.buffer) >= i.bufSize
	i.mu.Unlock()

	if full {
		if err := i.Flush(); err != nil {
			log.Printf("Failed to flush records: %v", err)
		}
	}
}

// HandleLocation registers a station location immediately; registrations
// are rare and idempotent.
func (i *Ingestor) HandleLocation(loc *types.Location) {
	if err := i.db.UpsertLocation(loc); err != nil {
		log.Printf("Failed to upsert location %s/%s: %v", loc.Site, loc.Model, err)
		return
	}
	i.stats.IncrementLocationsAdded()
}

// Flush writes the buffered records in one transaction. The buffer is
// restored on failure so records are retried on the next flush.
func (i *Ingestor) Flush() error {
	i.mu.Lock()
	batch := i.buffer
	i.buffer = make([]*types.ClimateRecord, 0, i.bufSize)
	i.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := i.db.UpsertClimateRecords(batch); err != nil {
		i.mu.Lock()
		i.buffer = append(batch, i.buffer...)
		i.mu.Unlock()
		for range batch {
			i.stats.IncrementRecordsFailed()
		}
		return fmt.Errorf("failed to upsert %d records: %w", len(batch), err)
	}

	for range batch {
		i.stats.IncrementRecordsIngested()
	}
	return nil
}

// Start runs the periodic flush loop until the context is cancelled.
func (i *Ingestor) Start(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := i.Flush(); err != nil {
				log.Printf("Failed to flush records on shutdown: %v", err)
			}
			return
		case <-ticker.C:
			if err := i.Flush(); err != nil {
				log.Printf("Failed to flush records: %v", err)
			}
		}
	}
}

// Stats exposes the ingestion counters.
func (i *Ingestor) Stats() *stats.Stats { return i.stats }

func main() {
	if err := runIngestor(); err != nil {
		log.Printf("Ingestor failed: %v", err)
		os.Exit(1)
	}
}

// runIngestor contains the main application logic and can be tested
func runIngestor() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbClient, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database client: %w", err)
	}
	defer dbClient.Close()

	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	defer natsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestor := NewIngestor(dbClient, cfg.IngestBuffer)
	go ingestor.Start(ctx)
	go ingestor.Stats().LogPeriodically(ctx, time.Minute, log.Printf)

	if err := natsClient.SubscribeClimateRecords(ingestor.HandleRecord); err != nil {
		return fmt.Errorf("failed to subscribe to climate records: %w", err)
	}
	if err := natsClient.SubscribeLocations(ingestor.HandleLocation); err != nil {
		return fmt.Errorf("failed to subscribe to locations: %w", err)
	}

	log.Println("Ingestor started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	time.Sleep(time.Second) // Give the flush loop time to drain

	return nil
}
