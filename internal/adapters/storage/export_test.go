package storage

import (
	"context"
	"time"
)

// SetClock fija el reloj usado para exported_at y la retención.
func (s *SQLiteStorage) SetClock(now func() time.Time) { s.now = now }

func (s *SQLiteStorage) PruneOld(ctx context.Context) { s.pruneOld(ctx) }
