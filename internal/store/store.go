package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// ErrUnavailable is returned when the backing database cannot be opened or reached.
var ErrUnavailable = errors.New("store unavailable")

// Store persists sessions, the content log and run events.
type Store interface {
	// LoadSession returns nil, nil when no session exists for accountID.
	LoadSession(ctx context.Context, accountID string) (*types.Session, error)
	// SaveSession replaces the stored session for s.AccountID in a single upsert.
	SaveSession(ctx context.Context, s *types.Session) error
	DeleteSession(ctx context.Context, accountID string) error

	AppendContentLog(ctx context.Context, entry types.ContentLogEntry) error
	// RecentSuccessfulContent returns successful entries posted after since, newest first.
	RecentSuccessfulContent(ctx context.Context, since time.Time, limit int) ([]types.ContentLogEntry, error)
	// ContentLogSince returns every entry for accountID posted after since, oldest first.
	ContentLogSince(ctx context.Context, accountID string, since time.Time) ([]types.ContentLogEntry, error)

	AppendRunEvent(ctx context.Context, ev types.RunEvent) error

	Ping(ctx context.Context) error
	Close() error
}

// Open opens the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite, "":
		s, err = NewSQLite(cfg.Path, logger)
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}
