package ports

import (
	"context"

	"github.com/alejandrodnm/candlebot/internal/domain"
)

// Notifier presenta los resultados de un batch de simulaciones.
type Notifier interface {
	Notify(ctx context.Context, results []domain.SimulationResult) error
}
