package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/firewx/climo/internal/capture"
	"github.com/firewx/climo/internal/nats"
	"github.com/firewx/climo/internal/parser"
	"github.com/firewx/climo/internal/stats"
	"github.com/firewx/climo/internal/storage"
	"github.com/firewx/climo/internal/types"
)

// Publisher interface for testability
type Publisher interface {
	PublishClimateRecord(rec *types.ClimateRecord) error
	PublishLocation(loc *types.Location) error
}

// ArchiveWriter interface for testability
type ArchiveWriter interface {
	WriteLine(line string) error
}

// Collector parses raw feed lines and publishes them to the message bus,
// archiving the raw lines on the side.
type Collector struct {
	publisher Publisher
	archive   ArchiveWriter
	stats     *stats.Stats
}

// NewCollector creates a collector. archive may be nil to skip archiving.
func NewCollector(publisher Publisher, archive ArchiveWriter) *Collector {
	return &Collector{
		publisher: publisher,
		archive:   archive,
		stats:     stats.New(),
	}
}

// HandleLine archives, parses and publishes one feed line. Malformed lines
// are counted and dropped; one bad line never stops the feed.
func (c *Collector) HandleLine(line capture.Line) {
	if c.archive != nil {
		if err := c.archive.WriteLine(line.Text); err != nil {
			log.Printf("Failed to archive line from %s: %v", line.Source, err)
		}
	}

	parsed, err := parser.ParseLine(line.Text)
	if err != nil {
		c.stats.IncrementRecordsFailed()
		log.Printf("Dropping malformed line from %s: %v", line.Source, err)
		return
	}

	switch {
	case parsed.Record != nil:
		if err := c.publisher.PublishClimateRecord(parsed.Record); err != nil {
			c.stats.IncrementRecordsFailed()
			log.Printf("Failed to publish record from %s: %v", line.Source, err)
			return
		}
		c.stats.IncrementRecordsIngested()
	case parsed.Location != nil:
		if err := c.publisher.PublishLocation(parsed.Location); err != nil {
			log.Printf("Failed to publish location from %s: %v", line.Source, err)
			return
		}
		c.stats.IncrementLocationsAdded()
	}
}

// Stats exposes the collection counters.
func (c *Collector) Stats() *stats.Stats { return c.stats }

func main() {
	if err := runCollector(); err != nil {
		log.Printf("Collector failed: %v", err)
		os.Exit(1)
	}
}

// parseEnvironment reads the collector configuration from the environment.
func parseEnvironment() (sources []string, natsURL, archiveDir string, err error) {
	rawSources := os.Getenv("FEED_SOURCES")
	if rawSources == "" {
		return nil, "", "", fmt.Errorf("FEED_SOURCES environment variable is required")
	}
	for _, s := range strings.Split(rawSources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	natsURL = os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222"
	}
	archiveDir = os.Getenv("ARCHIVE_DIR")
	return sources, natsURL, archiveDir, nil
}

// runCollector contains the main application logic and can be tested
func runCollector() error {
	sources, natsURL, archiveDir, err := parseEnvironment()
	if err != nil {
		return err
	}

	natsClient, err := nats.New(natsURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	defer natsClient.Close()

	var archive ArchiveWriter
	if archiveDir != "" {
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
		fileArchive := storage.New(archiveDir)
		if err := fileArchive.Start(); err != nil {
			return fmt.Errorf("failed to start archive: %w", err)
		}
		defer fileArchive.Stop()
		archive = fileArchive
	}

	collector := NewCollector(natsClient, archive)

	feed := capture.New(sources)
	feed.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range feed.Lines() {
			collector.HandleLine(line)
		}
	}()

	log.Printf("Collector started with %d sources", len(sources))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	feed.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Timed out draining feed lines")
	}

	log.Printf("Final stats: %s", collector.Stats())
	return nil
}
