package db

import "testing"

func TestPoolConfig(t *testing.T) {
	const dsn = "postgres://app:pw@localhost:5432/clinic"

	tests := []struct {
		name    string
		opts    PoolOptions
		wantMax int32
		wantMin int32
	}{
		{"defaults", PoolOptions{}, 10, 1},
		{"sized", PoolOptions{MaxConns: 25, MinConns: 5}, 25, 5},
		{"min clamped to max", PoolOptions{MaxConns: 4, MinConns: 8}, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig(dsn, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.MaxConns != tt.wantMax || cfg.MinConns != tt.wantMin {
				t.Errorf("expected max=%d min=%d, got max=%d min=%d", tt.wantMax, tt.wantMin, cfg.MaxConns, cfg.MinConns)
			}
		})
	}
}

func TestPoolConfig_BadDSN(t *testing.T) {
	if _, err := poolConfig("postgres://app:pw@localhost:notaport/clinic", PoolOptions{}); err == nil {
		t.Error("expected an error for a malformed dsn")
	}
}
