package cronjob

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/payment"
)

const (
	ReconcilePaymentsJob = "reconcile-pending-payments"
	ProjectStatsJob      = "refresh-project-stats"
)

// NewReconcileJob re-verifies pending payments whose redirect and webhook
// never arrived.
func NewReconcileJob(spec string, o *payment.Orchestrator, olderThan time.Duration) Job {
	return Job{
		Name: ReconcilePaymentsJob,
		Spec: spec,
		Run: func(ctx context.Context) (string, error) {
			settled, failed, err := o.ReconcilePending(ctx, olderThan)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("settled %d, still pending or failed %d", settled, failed), nil
		},
	}
}

// NewProjectStatsJob refreshes the projects-per-status gauge.
func NewProjectStatsJob(spec string, s *lifecycle.Service) Job {
	return Job{
		Name: ProjectStatsJob,
		Spec: spec,
		Run: func(ctx context.Context) (string, error) {
			counts, err := s.RefreshStatusGauge(ctx)
			if err != nil {
				return "", err
			}
			var total int64
			for _, n := range counts {
				total += n
			}
			return fmt.Sprintf("%d projects", total), nil
		},
	}
}
