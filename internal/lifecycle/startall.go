package lifecycle

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/metrics"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// StartAll arranca cada Domain activo que no tenga proceso. Espera a que todos
// los starts terminen y devuelve el resultado de cada uno ordenado por id.
// Los ya online no se tocan.
func (o *Orchestrator) StartAll(ctx context.Context, actor authz.Actor) ([]StartResult, error) {
	const op = "startall"
	if !actor.Admin {
		return nil, errs.Unauthorized(op, "admin role required")
	}

	domains, err := o.domains.List(ctx)
	if err != nil {
		return nil, errs.IO(op, "", "domain.list", err)
	}
	procs, err := o.sup.List(ctx)
	if err != nil {
		return nil, errs.Provisioning(op, "", "process.list", err)
	}
	metrics.ManagedProcesses.Set(float64(len(procs)))

	type target struct {
		id  int64
		sub string
	}
	var targets []target
	for _, d := range domains {
		if !d.Active {
			continue
		}
		if _, running := supervisor.StatusOf(procs, d.Domain); running {
			continue
		}
		targets = append(targets, target{id: d.ID, sub: d.Domain})
	}
	metrics.StartAllTargets.Observe(float64(len(targets)))

	log := logger.From(ctx).With(logger.Op(op), logger.Count(len(targets)))
	log.Info("startall fan-out")

	results := make([]StartResult, len(targets))
	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, t := range targets {
		g.Go(func() error {
			// start re-chequea estado bajo el lock del Domain
			err := o.Start(ctx, t.id, actor)
			results[i] = StartResult{ID: t.id, Domain: t.sub, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].ID < results[b].ID })
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info("startall settled", logger.Int("failed", failed))
	return results, nil
}
