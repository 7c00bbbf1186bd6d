package ports

import (
	"context"

	"github.com/alejandrodnm/candlebot/internal/domain"
)

// ReportExporter persiste el informe agregado de todos los bots de un ticker.
// Es best-effort: el orquestador sólo loguea sus errores.
type ReportExporter interface {
	Export(ctx context.Context, ticker string, results []domain.SimulationResult) error
}
