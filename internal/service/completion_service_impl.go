package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/lock"
	"github.com/alexanderramin/workorders/internal/repository"
)

// RejectionRecorder counts messages refused by validation, once per failed
// rule.
type RejectionRecorder interface {
	MessageRejected(kind string, rule completion.Rule)
}

type CompletionDeps struct {
	Orders repository.WorkOrderRepo
	UoW    db.UnitOfWork

	Materials  external.MaterialRegistry
	Containers external.ContainerRegistry
	Sets       external.SetService
	Schemas    *completion.SchemaCache
	Events     external.EventSink

	Locker  lock.Locker
	LockTTL time.Duration
	Logger  *slog.Logger

	Runs       completion.RunRecorder
	Rejections RejectionRecorder
}

type completionService struct {
	CompletionDeps
	validator *completion.Validator
	builder   *completion.Builder
	runner    *completion.Runner
	observer  UseCaseObserver
}

func NewCompletionService(deps CompletionDeps, observers ...UseCaseObserver) CompletionService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	deps.Logger = loggerOrDiscard(deps.Logger)
	s := &completionService{
		CompletionDeps: deps,
		validator:      completion.NewValidator(deps.Containers, deps.Sets),
		runner:         completion.NewRunner(deps.Logger, deps.Runs),
		observer:       useCaseObserverOrNoop(observers),
	}
	s.builder = completion.NewBuilder(completion.Registries{
		Materials:  deps.Materials,
		Containers: deps.Containers,
		Sets:       deps.Sets,
	}, s.writeOrder)
	return s
}

// writeOrder commits one order status change as the last step of a run.
func (s *completionService) writeOrder(ctx context.Context, o *domain.WorkOrder, expected domain.OrderStatus) error {
	return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteWorkOrderRepo(tx).Update(ctx, o, expected)
	})
}

func (s *completionService) Complete(ctx context.Context, message []byte) (*CompletionOutcome, error) {
	return s.handle(ctx, "complete", message)
}

func (s *completionService) Cancel(ctx context.Context, message []byte) (*CompletionOutcome, error) {
	return s.handle(ctx, "cancel", message)
}

func (s *completionService) handle(ctx context.Context, kind string, message []byte) (out *CompletionOutcome, err error) {
	fields := map[string]any{"kind": kind}
	defer observe(ctx, s.observer, "order."+kind, fields, &err)()

	msg, derr := completion.DecodeMessage(message)
	if derr != nil {
		res := &completion.Result{Problems: []completion.Problem{{Rule: completion.RuleSchema, Message: derr.Error()}}}
		s.rejected(ctx, kind, res)
		return &CompletionOutcome{Validation: res}, nil
	}
	orderID := string(msg.WorkOrder.WorkOrderID)
	fields["work_order_id"] = orderID

	order, err := s.Orders.GetByID(ctx, orderID)
	if isNotFound(err) {
		// Validation reports the unknown order.
		return s.apply(ctx, kind, msg, nil)
	}
	if err != nil {
		return nil, err
	}

	err = withPlanLock(ctx, s.Locker, s.LockTTL, order.PlanID, s.Logger, func() error {
		current, err := s.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		out, err = s.apply(ctx, kind, msg, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *completionService) apply(ctx context.Context, kind string, msg *completion.Message, order *domain.WorkOrder) (*CompletionOutcome, error) {
	schemas, err := s.Schemas.Get(ctx)
	if err != nil {
		return nil, domain.Lookupf("material registry", err, "could not load registry schemas")
	}
	res := s.validator.Validate(ctx, order, msg, schemas)
	out := &CompletionOutcome{Order: order, Validation: res}
	if !res.OK() {
		s.rejected(ctx, kind, res)
		return out, nil
	}

	build, event := s.builder.Completion, external.EventCompleted
	if kind == "cancel" {
		build, event = s.builder.Cancellation, external.EventCancelled
	}
	steps := build(order, msg)
	if err := s.runner.Run(ctx, kind, steps); err != nil {
		return nil, err
	}

	updated, err := s.Orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	out.Order = updated
	publishEvent(ctx, s.Events, s.Logger, orderEvent(event, updated))
	return out, nil
}

func (s *completionService) rejected(ctx context.Context, kind string, res *completion.Result) {
	s.Logger.InfoContext(ctx, "message_rejected", "kind", kind, "problems", len(res.Problems), "summary", res.Summary())
	if s.Rejections == nil {
		return
	}
	seen := map[completion.Rule]bool{}
	for _, p := range res.Problems {
		if !seen[p.Rule] {
			seen[p.Rule] = true
			s.Rejections.MessageRejected(kind, p.Rule)
		}
	}
}

func (s *completionService) Withdraw(ctx context.Context, orderID string) (order *domain.WorkOrder, err error) {
	defer observe(ctx, s.observer, "order.withdraw", map[string]any{"work_order_id": orderID}, &err)()

	current, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	err = withPlanLock(ctx, s.Locker, s.LockTTL, current.PlanID, s.Logger, func() error {
		o, err := s.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		status, err := domain.Transition(o.Status, domain.EventWithdraw)
		if err != nil {
			return err
		}
		next := *o
		next.Status = status
		next.UpdatedAt = time.Now().UTC()
		return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			if err := repository.NewSQLiteWorkOrderRepo(tx).Update(ctx, &next, o.Status); err != nil {
				return err
			}
			db.AfterCommit(ctx, func(ctx context.Context) {
				publishEvent(ctx, s.Events, s.Logger, orderEvent(external.EventCancelled, &next))
			})
			order = &next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
