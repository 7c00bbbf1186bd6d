package simulation

// pool.go — worker pool para simulaciones (bot × ticker).
//
// Cada tarea es una función pura de (serie de velas compartida, bot): tiene su
// propio ledger, reloj y cache de estrategia, así que los workers no comparten
// estado mutable. Un panic o un deadline vencido sólo marcan el resultado de
// esa tarea.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/candlebot/internal/domain"
)

type indexedResult struct {
	index  int
	result domain.SimulationResult
}

// runPool ejecuta las tareas con cfg.Threads workers y devuelve los resultados
// en el orden de entrada.
func (o *Orchestrator) runPool(ctx context.Context, tasks []task) []domain.SimulationResult {
	workers := o.cfg.Threads
	if workers > len(tasks) {
		workers = len(tasks)
	}

	workCh := make(chan int, len(tasks))
	resultCh := make(chan indexedResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				res := o.runIsolated(ctx, tasks[idx])
				if res.Failed() {
					slog.Warn("simulation failed",
						"bot", res.Bot,
						"ticker", res.Ticker,
						"err", res.Error,
					)
				}
				resultCh <- indexedResult{index: idx, result: res}
			}
		}()
	}

	for i := range tasks {
		workCh <- i
	}
	close(workCh)

	// Cerrar resultCh cuando todos los workers terminen.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]domain.SimulationResult, len(tasks))
	for r := range resultCh {
		results[r.index] = r.result
	}

	slog.Debug("simulation pool drained",
		"tasks", len(tasks),
		"workers", workers,
	)
	return results
}

// runIsolated corre una tarea con su deadline. Si vence, el worker sigue con la
// siguiente tarea y la goroutine colgada se abandona.
func (o *Orchestrator) runIsolated(ctx context.Context, t task) domain.SimulationResult {
	if t.market.err != nil {
		return t.failed(t.market.err)
	}

	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if o.cfg.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, o.cfg.TaskTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan domain.SimulationResult, 1)
	go func() {
		done <- runRecovered(taskCtx, t)
	}()

	select {
	case r := <-done:
		return r
	case <-taskCtx.Done():
		select {
		case r := <-done:
			return r
		default:
		}
		return t.failed(&domain.DecisionError{
			Bot:    t.bot.Name(),
			Ticker: t.ticker,
			Stage:  domain.StageTimeout,
			Err:    taskCtx.Err(),
		})
	}
}

// runRecovered convierte un panic de la tarea en un resultado con error.
func runRecovered(ctx context.Context, t task) (res domain.SimulationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = t.failed(&domain.DecisionError{
				Bot:    t.bot.Name(),
				Ticker: t.ticker,
				Stage:  domain.StagePanic,
				Err:    fmt.Errorf("%v", r),
			})
		}
	}()

	res, err := t.run(ctx)
	if err != nil {
		return t.failed(err)
	}
	slog.Debug("simulation finished",
		"bot", res.Bot,
		"ticker", res.Ticker,
		"operations", len(res.Operations),
		"absolute_profit", res.AbsoluteProfit.StringFixed(2),
	)
	return res
}
