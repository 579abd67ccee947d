package nats

import (
	"context"
	"testing"
	"time"

	"github.com/firewx/climo/internal/testutils"
	"github.com/firewx/climo/internal/types"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATSContainer(t *testing.T) *natscontainer.NATSContainer {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate NATS container: %v", err)
		}
	})
	return container
}

func TestNATSClient_Integration_Connection(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container := startNATSContainer(t)

	natsURL, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	client, err := New(natsURL)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	defer client.Close()

	if client.conn == nil {
		t.Error("Expected connection to be initialized")
	}
	if client.js == nil {
		t.Error("Expected JetStream context to be initialized")
	}
}

func TestNATSClient_Integration_RecordRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container := startNATSContainer(t)

	natsURL, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	client, err := New(natsURL)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	defer client.Close()

	received := make(chan *types.ClimateRecord, 1)
	if err := client.SubscribeClimateRecords(func(rec *types.ClimateRecord) {
		received <- rec
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	// Give the subscription time to establish
	time.Sleep(100 * time.Millisecond)

	sent := testutils.MockClimateRecord("ABC", "GFS",
		time.Date(2019, 2, 14, 19, 0, 0, 0, time.UTC), 42.5)
	if err := client.PublishClimateRecord(sent); err != nil {
		t.Fatalf("Failed to publish record: %v", err)
	}

	select {
	case rec := <-received:
		if rec.Site != sent.Site || rec.Model != sent.Model {
			t.Errorf("Expected %s/%s, got %s/%s", sent.Site, sent.Model, rec.Site, rec.Model)
		}
		if !rec.ValidTime.Equal(sent.ValidTime) {
			t.Errorf("Expected valid time %s, got %s", sent.ValidTime, rec.ValidTime)
		}
		if rec.HDW == nil || *rec.HDW != 42.5 {
			t.Errorf("Expected HDW 42.5, got %v", rec.HDW)
		}
		if rec.HourLcl != sent.HourLcl {
			t.Errorf("Expected local hour %d, got %d", sent.HourLcl, rec.HourLcl)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for record")
	}
}

func TestNATSClient_Integration_LocationRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container := startNATSContainer(t)

	natsURL, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	client, err := New(natsURL)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	defer client.Close()

	received := make(chan *types.Location, 1)
	if err := client.SubscribeLocations(func(loc *types.Location) {
		received <- loc
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	sent := testutils.MockLocation("ABC", "GFS")
	if err := client.PublishLocation(sent); err != nil {
		t.Fatalf("Failed to publish location: %v", err)
	}

	select {
	case loc := <-received:
		if loc.Site != sent.Site || loc.Latitude != sent.Latitude {
			t.Errorf("Expected %+v, got %+v", sent, loc)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for location")
	}
}

func TestNATSClient_Integration_RecordsOnDistinctSubjects(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container := startNATSContainer(t)

	natsURL, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	client, err := New(natsURL)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	defer client.Close()

	records := make(chan *types.ClimateRecord, 4)
	if err := client.SubscribeClimateRecords(func(rec *types.ClimateRecord) {
		records <- rec
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Locations must not arrive on the record subscription.
	if err := client.PublishLocation(testutils.MockLocation("ABC", "GFS")); err != nil {
		t.Fatalf("Failed to publish location: %v", err)
	}
	if err := client.PublishClimateRecord(testutils.MockClimateRecord("ABC", "GFS", time.Now().UTC(), 10)); err != nil {
		t.Fatalf("Failed to publish record: %v", err)
	}

	select {
	case rec := <-records:
		if rec.HDW == nil {
			t.Error("Received a message that is not a climate record")
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for record")
	}

	select {
	case rec := <-records:
		t.Errorf("Unexpected extra message on record subject: %+v", rec)
	case <-time.After(500 * time.Millisecond):
	}
}
