package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr bool
	}{
		{"nil config", nil, "", true},
		{"memory", &config.Config{DataBackend: "memory"}, MemoryBackend, false},
		{"sqlite", &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, SQLiteBackend, false},
		{"sheets is gone", &config.Config{DataBackend: "sheets"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Type != tt.want {
				t.Errorf("Type = %q, want %q", got.Type, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Type: SQLiteBackend}).Validate(); err == nil {
		t.Error("sqlite without a path should fail")
	}
	if err := (Config{Type: "postgres"}).Validate(); err == nil {
		t.Error("unknown type should fail")
	}
	if err := (Config{Type: MemoryBackend}).Validate(); err != nil {
		t.Errorf("memory Validate() error = %v", err)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(log.Discard())

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "data", "fintrack.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			result, err := factory.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer result.Cleanup()

			if err := result.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			msg := ingest.Message{ID: "m1", Body: "Rs 10 debited", Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
			if added, err := result.Store.AddMessage(ctx, msg); err != nil || !added {
				t.Fatalf("AddMessage() = %v, %v", added, err)
			}
			msgs, err := result.Store.List(ctx, ingest.Filter{MaxCount: 10})
			if err != nil || len(msgs) != 1 {
				t.Errorf("List() = %+v, %v", msgs, err)
			}
		})
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Error("CreateBackend() with an unknown type should fail")
	}
}
