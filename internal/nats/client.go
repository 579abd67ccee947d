package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/firewx/climo/internal/types"
	"github.com/nats-io/nats.go"
)

const (
	// SubjectRecord carries climate-index records from the analysis
	// pipeline; SubjectLocation carries station registrations.
	SubjectRecord   = "climo.record"
	SubjectLocation = "climo.location"

	streamName = "CLIMO"
)

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{SubjectRecord, SubjectLocation},
		Storage:  nats.FileStorage,
		MaxAge:   72 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishClimateRecord publishes a climate record to NATS
func (c *Client) PublishClimateRecord(rec *types.ClimateRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := c.js.Publish(SubjectRecord, data); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// PublishLocation publishes a station registration to NATS
func (c *Client) PublishLocation(loc *types.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	if _, err := c.js.Publish(SubjectLocation, data); err != nil {
		return fmt.Errorf("failed to publish location: %w", err)
	}
	return nil
}

// SubscribeClimateRecords subscribes to incoming climate records
func (c *Client) SubscribeClimateRecords(handler func(*types.ClimateRecord)) error {
	_, err := c.js.Subscribe(SubjectRecord, func(msg *nats.Msg) {
		var rec types.ClimateRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Printf("Error unmarshaling climate record: %v", err)
			return
		}
		handler(&rec)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to records: %w", err)
	}
	return nil
}

// SubscribeLocations subscribes to incoming station registrations
func (c *Client) SubscribeLocations(handler func(*types.Location)) error {
	_, err := c.js.Subscribe(SubjectLocation, func(msg *nats.Msg) {
		var loc types.Location
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			log.Printf("Error unmarshaling location: %v", err)
			return
		}
		handler(&loc)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to locations: %w", err)
	}
	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
