package config

import (
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "NATS_URL", "REDIS_ADDR", "WORK_MEM",
		"SITES", "MODELS", "WORKERS", "INGEST_BUFFER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://climo:pw@localhost:5432/climo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NATSURL != "nats://nats:4222" {
		t.Errorf("Expected default NATS URL, got %q", cfg.NATSURL)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("Expected default Redis address, got %q", cfg.RedisAddr)
	}
	if cfg.WorkMem != "64MB" {
		t.Errorf("Expected default work_mem, got %q", cfg.WorkMem)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.IngestBuffer != 2048 {
		t.Errorf("Expected ingest buffer 2048, got %d", cfg.IngestBuffer)
	}
	if cfg.Sites != nil || cfg.Models != nil {
		t.Errorf("Expected no site/model filters, got %v / %v", cfg.Sites, cfg.Models)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); err == nil {
		t.Error("Expected error when DATABASE_URL is unset")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://climo:pw@db:5432/climo")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("WORK_MEM", "256MB")
	t.Setenv("WORKERS", "8")
	t.Setenv("INGEST_BUFFER", "512")
	t.Setenv("SITES", "ABC, XYZ ,,DEF")
	t.Setenv("MODELS", "GFS,NAM")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Workers)
	}
	if cfg.IngestBuffer != 512 {
		t.Errorf("Expected ingest buffer 512, got %d", cfg.IngestBuffer)
	}
	if cfg.WorkMem != "256MB" {
		t.Errorf("Expected work_mem 256MB, got %q", cfg.WorkMem)
	}
	if !reflect.DeepEqual(cfg.Sites, []string{"ABC", "XYZ", "DEF"}) {
		t.Errorf("Unexpected sites: %v", cfg.Sites)
	}
	if !reflect.DeepEqual(cfg.Models, []string{"GFS", "NAM"}) {
		t.Errorf("Unexpected models: %v", cfg.Models)
	}
}

func TestLoad_InvalidIntegers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric workers", "WORKERS", "lots"},
		{"zero workers", "WORKERS", "0"},
		{"negative workers", "WORKERS", "-2"},
		{"non-numeric buffer", "INGEST_BUFFER", "big"},
		{"zero buffer", "INGEST_BUFFER", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://climo:pw@db:5432/climo")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"ABC", []string{"ABC"}},
		{"ABC,DEF", []string{"ABC", "DEF"}},
		{" ABC , DEF ", []string{"ABC", "DEF"}},
		{",,", nil},
	}

	for _, tt := range tests {
		got := splitList(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
