package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/lock"
	"github.com/alexanderramin/workorders/internal/repository"
)

// DefaultLockTTL bounds how long a lifecycle transition may hold its plan.
const DefaultLockTTL = 30 * time.Second

func planLockKey(planID string) string { return "plan:" + planID }

// withPlanLock runs fn while holding the plan's lifecycle lock.
func withPlanLock(ctx context.Context, locker lock.Locker, ttl time.Duration, planID string, logger *slog.Logger, fn func() error) error {
	unlock, err := locker.Lock(ctx, planLockKey(planID), ttl)
	if err != nil {
		return fmt.Errorf("locking work plan %s: %w", planID, err)
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			logger.WarnContext(ctx, "plan_unlock_failed", "plan_id", planID, "err", uerr)
		}
	}()
	return fn()
}

func loadView(ctx context.Context, plans repository.WorkPlanRepo, orders repository.WorkOrderRepo, planID string) (*domain.PlanView, error) {
	p, err := plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	list, err := orders.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return domain.NewPlanView(p, list), nil
}

// unpricedModules returns the names of moduleIDs that billing cannot cost
// against costCode.
func unpricedModules(ctx context.Context, billing external.Billing, proc *domain.Process, moduleIDs []string, costCode string) ([]string, error) {
	var missing []string
	for _, id := range moduleIDs {
		name, ok := proc.ModuleName(id)
		if !ok {
			return nil, domain.Guardf("module %s does not belong to process %s", id, proc.Name)
		}
		cost, err := billing.ModuleCost(ctx, name, costCode)
		if err != nil {
			return nil, domain.Lookupf("billing", err, "could not price module %s", name)
		}
		if cost == nil {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func publishEvent(ctx context.Context, sink external.EventSink, logger *slog.Logger, ev external.Event) {
	if err := sink.Publish(ctx, ev); err != nil {
		logger.WarnContext(ctx, "event_publish_failed",
			"type", string(ev.Type), "work_order_id", ev.WorkOrderID, "err", err)
	}
}

func orderEvent(typ external.EventType, o *domain.WorkOrder) external.Event {
	return external.Event{
		Type:        typ,
		WorkOrderID: o.ID,
		PlanID:      o.PlanID,
		Status:      string(o.Status),
		Comment:     o.Comment,
		At:          time.Now().UTC(),
	}
}

func joinNames(names []string) string { return strings.Join(names, ", ") }

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
