package redis

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/firewx/climo/internal/climo"
	"github.com/firewx/climo/internal/types"
	"github.com/redis/go-redis/v9"
)

// mockRedisClient is an in-memory RedisClientInterface for tests.
type mockRedisClient struct {
	data    map[string]string
	pingErr error
	setErr  error
	getErr  error
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: make(map[string]string)}
}

func (m *mockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.pingErr != nil {
		cmd.SetErr(m.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	val, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (m *mockRedisClient) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	cmd.SetVal(keys)
	return cmd
}

func (m *mockRedisClient) Close() error { return nil }

func testDecileRow() *types.DecileRow {
	row := &types.DecileRow{Site: "ABC", Model: "GFS", DayOfYear: 45, HourOfDay: 12}
	for _, element := range types.Elements {
		row.SetBlob(element, climo.EncodeDeciles(climo.Deciles{10, 20, 30, 40, 50, 60, 70, 80, 90}))
	}
	return row
}

func TestClient_DecileRowRoundtrip(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()
	row := testDecileRow()

	if err := client.CacheDecileRow(ctx, row); err != nil {
		t.Fatalf("CacheDecileRow failed: %v", err)
	}

	got, err := client.GetDecileRow(ctx, "ABC", "GFS", 45, 12)
	if err != nil {
		t.Fatalf("GetDecileRow failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached row")
	}
	if got.Site != row.Site || got.DayOfYear != row.DayOfYear {
		t.Errorf("Unexpected row: %+v", got)
	}

	deciles, err := climo.DecodeDeciles(got.HDWDeciles)
	if err != nil {
		t.Fatalf("DecodeDeciles failed: %v", err)
	}
	if deciles[4] != 50 {
		t.Errorf("Expected median 50, got %v", deciles[4])
	}
}

func TestClient_GetDecileRowMiss(t *testing.T) {
	client := NewWithClient(newMockRedisClient())

	row, err := client.GetDecileRow(context.Background(), "ABC", "GFS", 1, 0)
	if err != nil {
		t.Errorf("Expected nil error on miss, got %v", err)
	}
	if row != nil {
		t.Errorf("Expected nil row on miss, got %+v", row)
	}
}

func TestClient_DeleteDecileRow(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()

	if err := client.CacheDecileRow(ctx, testDecileRow()); err != nil {
		t.Fatalf("CacheDecileRow failed: %v", err)
	}
	if err := client.DeleteDecileRow(ctx, "ABC", "GFS", 45, 12); err != nil {
		t.Fatalf("DeleteDecileRow failed: %v", err)
	}

	row, err := client.GetDecileRow(ctx, "ABC", "GFS", 45, 12)
	if err != nil || row != nil {
		t.Errorf("Expected miss after delete, got row=%+v err=%v", row, err)
	}
}

func TestClient_GetDecileRowCorruptPayload(t *testing.T) {
	mock := newMockRedisClient()
	mock.data["deciles:ABC:GFS:45:12"] = "not json"
	client := NewWithClient(mock)

	if _, err := client.GetDecileRow(context.Background(), "ABC", "GFS", 45, 12); err == nil {
		t.Error("Expected error for corrupt payload")
	}
}

func TestClient_BuildMarkerRoundtrip(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()

	marker := &BuildMarker{RunID: "run-1", BuiltAt: time.Now().UTC().Truncate(time.Second), Buckets: 8760}
	if err := client.SetBuildMarker(ctx, "ABC", "GFS", marker); err != nil {
		t.Fatalf("SetBuildMarker failed: %v", err)
	}

	got, err := client.GetBuildMarker(ctx, "ABC", "GFS")
	if err != nil {
		t.Fatalf("GetBuildMarker failed: %v", err)
	}
	if got == nil || got.RunID != "run-1" || got.Buckets != 8760 {
		t.Errorf("Unexpected marker: %+v", got)
	}
	if !got.BuiltAt.Equal(marker.BuiltAt) {
		t.Errorf("Expected built at %s, got %s", marker.BuiltAt, got.BuiltAt)
	}

	// Marker stays JSON so other tooling can read it.
	var decoded BuildMarker
	if err := json.Unmarshal([]byte(mock.data["climo:build:ABC:GFS"]), &decoded); err != nil {
		t.Errorf("Stored marker is not valid JSON: %v", err)
	}
}

func TestClient_GetBuildMarkerMiss(t *testing.T) {
	client := NewWithClient(newMockRedisClient())

	marker, err := client.GetBuildMarker(context.Background(), "XYZ", "NAM")
	if err != nil || marker != nil {
		t.Errorf("Expected miss, got marker=%+v err=%v", marker, err)
	}
}

func TestClient_DeleteBuildMarker(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()

	if err := client.SetBuildMarker(ctx, "ABC", "GFS", &BuildMarker{RunID: "run-1"}); err != nil {
		t.Fatalf("SetBuildMarker failed: %v", err)
	}
	if err := client.DeleteBuildMarker(ctx, "ABC", "GFS"); err != nil {
		t.Fatalf("DeleteBuildMarker failed: %v", err)
	}
	if marker, _ := client.GetBuildMarker(ctx, "ABC", "GFS"); marker != nil {
		t.Errorf("Expected miss after delete, got %+v", marker)
	}
}

func TestClient_DeletePairDeciles(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()

	rows := []*types.DecileRow{
		{Site: "ABC", Model: "GFS", DayOfYear: 45, HourOfDay: 12},
		{Site: "ABC", Model: "GFS", DayOfYear: 46, HourOfDay: 12},
		{Site: "ABC", Model: "NAM", DayOfYear: 45, HourOfDay: 12},
	}
	for _, row := range rows {
		if err := client.CacheDecileRow(ctx, row); err != nil {
			t.Fatalf("CacheDecileRow failed: %v", err)
		}
	}

	if err := client.DeletePairDeciles(ctx, "ABC", "GFS"); err != nil {
		t.Fatalf("DeletePairDeciles failed: %v", err)
	}

	for _, doy := range []int{45, 46} {
		if row, _ := client.GetDecileRow(ctx, "ABC", "GFS", doy, 12); row != nil {
			t.Errorf("Expected doy %d dropped for ABC/GFS, got %+v", doy, row)
		}
	}
	// Other pairs are untouched.
	if row, _ := client.GetDecileRow(ctx, "ABC", "NAM", 45, 12); row == nil {
		t.Error("Expected ABC/NAM row to survive")
	}
}

func TestClient_DeletePairDecilesEmptyCache(t *testing.T) {
	client := NewWithClient(newMockRedisClient())

	if err := client.DeletePairDeciles(context.Background(), "ABC", "GFS"); err != nil {
		t.Errorf("Expected no error on empty cache, got %v", err)
	}
}

func TestClient_Reset(t *testing.T) {
	mock := newMockRedisClient()
	client := NewWithClient(mock)
	ctx := context.Background()

	if err := client.CacheDecileRow(ctx, testDecileRow()); err != nil {
		t.Fatalf("CacheDecileRow failed: %v", err)
	}
	if err := client.SetBuildMarker(ctx, "ABC", "GFS", &BuildMarker{RunID: "run-1"}); err != nil {
		t.Fatalf("SetBuildMarker failed: %v", err)
	}

	if err := client.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if row, _ := client.GetDecileRow(ctx, "ABC", "GFS", 45, 12); row != nil {
		t.Errorf("Expected decile rows dropped, got %+v", row)
	}
	if marker, _ := client.GetBuildMarker(ctx, "ABC", "GFS"); marker != nil {
		t.Errorf("Expected build markers dropped, got %+v", marker)
	}
	if len(mock.data) != 0 {
		t.Errorf("Expected empty cache, got %d keys", len(mock.data))
	}
}

func TestClient_SetErrorPropagates(t *testing.T) {
	mock := newMockRedisClient()
	mock.setErr = redis.ErrClosed
	client := NewWithClient(mock)

	if err := client.CacheDecileRow(context.Background(), testDecileRow()); err == nil {
		t.Error("Expected error from failing Set")
	}
}
