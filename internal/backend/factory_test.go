package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finpulse/internal/config"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantErr  bool
		wantPing bool
	}{
		{
			name:   "memory",
			config: Config{Type: MemoryBackend, DataDirectory: t.TempDir(), Location: time.UTC},
		},
		{
			name:     "sqlite",
			config:   Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "f.db"), Location: time.UTC},
			wantPing: true,
		},
		{
			name:    "sqlite without path",
			config:  Config{Type: SQLiteBackend},
			wantErr: true,
		},
		{
			name:    "unknown type",
			config:  Config{Type: "sheets"},
			wantErr: true,
		},
		{
			name:    "redis without channel",
			config:  Config{Type: MemoryBackend, RedisURL: "localhost:6379"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := NewFactory(nil).CreateBackend(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer res.Cleanup()

			cats, err := res.Store.ListCategories(ctx)
			if err != nil || len(cats) == 0 {
				t.Fatalf("expected seeded categories, got %v err=%v", cats, err)
			}
			if (res.Ping != nil) != tt.wantPing {
				t.Fatalf("unexpected ping presence %v", res.Ping != nil)
			}
			if res.Ping != nil {
				if err := res.Ping(ctx); err != nil {
					t.Fatalf("ping: %v", err)
				}
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "memory", SeedDir: "seed", TZName: "UTC", RedisChannel: "c"}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if bc.Type != MemoryBackend || bc.DataDirectory != "seed" || bc.Location.String() != "UTC" {
		t.Fatalf("unexpected backend config %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected invalid backend error")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected nil config error")
	}
}
