package storage

import (
	"context"
	"errors"

	"liquidityPool/internal/model"
)

// ErrStaleSnapshot is returned when a snapshot older than the stored one is saved.
var ErrStaleSnapshot = errors.New("snapshot is older than stored state")

// LogSink defines a sink for encoded pool event logs.
type LogSink interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// SnapshotStore persists the latest pool state.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, poolAddress string) (model.StateSnapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap model.StateSnapshot) error
}
