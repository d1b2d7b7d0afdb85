// internal/store/factory.go
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/internal/config"
)

// New builds the RunStore named by the configuration.
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (RunStore, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(logger), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store type postgres requires a DSN")
		}
		return NewPostgresStore(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
