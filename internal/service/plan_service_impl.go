package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/lock"
	"github.com/alexanderramin/workorders/internal/repository"
	"github.com/google/uuid"
)

// PlanDeps are the collaborators of the plan service. LockTTL defaults to
// DefaultLockTTL and Logger to a discarding logger.
type PlanDeps struct {
	Plans     repository.WorkPlanRepo
	Orders    repository.WorkOrderRepo
	Catalogue repository.CatalogueRepo
	UoW       db.UnitOfWork

	Materials external.MaterialRegistry
	Sets      external.SetService
	Projects  external.ProjectDirectory
	Billing   external.Billing
	Dispatch  external.DispatchSink
	Events    external.EventSink

	Locker  lock.Locker
	LockTTL time.Duration
	Logger  *slog.Logger
}

type planService struct {
	PlanDeps
	observer UseCaseObserver
}

func NewPlanService(deps PlanDeps, observers ...UseCaseObserver) PlanService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	deps.Logger = loggerOrDiscard(deps.Logger)
	return &planService{PlanDeps: deps, observer: useCaseObserverOrNoop(observers)}
}

func (s *planService) Create(ctx context.Context, owner string) (view *domain.PlanView, err error) {
	defer observe(ctx, s.observer, "plan.create", map[string]any{"owner": owner}, &err)()

	if owner == "" {
		return nil, domain.Guardf("a work plan needs an owner")
	}
	now := time.Now().UTC()
	p := &domain.WorkPlan{ID: uuid.New().String(), Owner: owner, CreatedAt: now, UpdatedAt: now}
	if err := s.Plans.Create(ctx, p); err != nil {
		return nil, err
	}
	return domain.NewPlanView(p, nil), nil
}

func (s *planService) Get(ctx context.Context, id string) (*domain.PlanView, error) {
	return loadView(ctx, s.Plans, s.Orders, id)
}

func (s *planService) List(ctx context.Context, owner string) ([]*domain.PlanView, error) {
	plans, err := s.Plans.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]*domain.PlanView, 0, len(plans))
	for _, p := range plans {
		orders, err := s.Orders.ListByPlan(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, domain.NewPlanView(p, orders))
	}
	return views, nil
}

func (s *planService) Delete(ctx context.Context, id string) (err error) {
	defer observe(ctx, s.observer, "plan.delete", map[string]any{"plan_id": id}, &err)()

	return withPlanLock(ctx, s.Locker, s.LockTTL, id, s.Logger, func() error {
		view, err := loadView(ctx, s.Plans, s.Orders, id)
		if err != nil {
			return err
		}
		if !view.InConstruction() {
			return domain.Guardf("work plan %s is in progress and cannot be deleted", id)
		}
		return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			if err := repository.NewSQLiteWorkOrderRepo(tx).DeleteByPlan(ctx, id); err != nil {
				return err
			}
			return repository.NewSQLiteWorkPlanRepo(tx).Delete(ctx, id)
		})
	})
}

// editable loads the plan under construction. Every edit use case starts
// with it.
func (s *planService) editable(ctx context.Context, planID string) (*domain.PlanView, error) {
	view, err := loadView(ctx, s.Plans, s.Orders, planID)
	if err != nil {
		return nil, err
	}
	if !view.InConstruction() {
		return nil, domain.Guardf("work plan %s is in progress and can no longer be edited", planID)
	}
	return view, nil
}

func (s *planService) SelectSet(ctx context.Context, in SelectSetInput) (view *domain.PlanView, err error) {
	defer observe(ctx, s.observer, "plan.select_set", map[string]any{"plan_id": in.PlanID, "set_id": in.SetID}, &err)()

	err = withPlanLock(ctx, s.Locker, s.LockTTL, in.PlanID, s.Logger, func() error {
		view, err := s.editable(ctx, in.PlanID)
		if err != nil {
			return err
		}
		set, err := s.Sets.FindSet(ctx, in.SetID)
		if err != nil {
			return domain.Lookupf("set service", err, "could not look up set %s", in.SetID)
		}
		if set == nil {
			return domain.Lookupf("set service", nil, "set %s not found", in.SetID)
		}

		plan := view.Plan
		plan.OriginalSetID = &set.ID
		plan.UpdatedAt = time.Now().UTC()
		return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			if err := repository.NewSQLiteWorkPlanRepo(tx).Update(ctx, plan); err != nil {
				return err
			}
			if len(view.Orders) == 0 {
				return nil
			}
			// The first order follows the new set; its clone is taken
			// again at dispatch.
			first := *view.Orders[0]
			first.OriginalSetID = &set.ID
			first.SetID = nil
			first.UpdatedAt = plan.UpdatedAt
			return repository.NewSQLiteWorkOrderRepo(tx).Update(ctx, &first, domain.OrderQueued)
		})
	})
	if err != nil {
		return nil, err
	}
	return loadView(ctx, s.Plans, s.Orders, in.PlanID)
}

func (s *planService) SelectProject(ctx context.Context, in SelectProjectInput) (view *domain.PlanView, err error) {
	defer observe(ctx, s.observer, "plan.select_project", map[string]any{"plan_id": in.PlanID, "project_id": in.ProjectID}, &err)()

	err = withPlanLock(ctx, s.Locker, s.LockTTL, in.PlanID, s.Logger, func() error {
		view, err := s.editable(ctx, in.PlanID)
		if err != nil {
			return err
		}
		plan := view.Plan
		if plan.OriginalSetID == nil {
			return domain.Guardf("select a set before selecting a project")
		}
		project, err := s.findProject(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if project.CostCode == "" {
			return domain.Guardf("project %d has no cost code", project.ID)
		}
		ok, err := s.Billing.ValidateCostCode(ctx, project.CostCode)
		if err != nil {
			return domain.Lookupf("billing", err, "could not validate cost code %s", project.CostCode)
		}
		if !ok {
			return domain.Guardf("cost code %s of project %d is not valid", project.CostCode, project.ID)
		}

		plan.ProjectID = &project.ID
		plan.UpdatedAt = time.Now().UTC()
		return s.Plans.Update(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return loadView(ctx, s.Plans, s.Orders, in.PlanID)
}

func (s *planService) findProject(ctx context.Context, id int64) (*domain.Project, error) {
	project, err := s.Projects.FindProject(ctx, id)
	if err != nil {
		return nil, domain.Lookupf("project directory", err, "could not look up project %d", id)
	}
	if project == nil {
		return nil, domain.Lookupf("project directory", nil, "project %d not found", id)
	}
	return project, nil
}

// costCode returns the cost code of the plan's project.
func (s *planService) costCode(ctx context.Context, plan *domain.WorkPlan) (string, error) {
	if plan.ProjectID == nil {
		return "", domain.Guardf("select a project before selecting a product")
	}
	project, err := s.findProject(ctx, *plan.ProjectID)
	if err != nil {
		return "", err
	}
	return project.CostCode, nil
}

func (s *planService) ConfigureProduct(ctx context.Context, in ConfigureProductInput) (view *domain.PlanView, err error) {
	defer observe(ctx, s.observer, "plan.configure_product", map[string]any{"plan_id": in.PlanID, "product_id": in.ProductID}, &err)()

	err = withPlanLock(ctx, s.Locker, s.LockTTL, in.PlanID, s.Logger, func() error {
		view, err := s.editable(ctx, in.PlanID)
		if err != nil {
			return err
		}
		plan := view.Plan
		if plan.ProjectID == nil {
			return domain.Guardf("select a project before selecting a product")
		}
		if in.ProductID == "" || in.ProductOptions == nil {
			return domain.Guardf("invalid product selection: a product and its module options are required")
		}
		product, err := s.Catalogue.GetProduct(ctx, in.ProductID)
		if isNotFound(err) {
			return domain.Guardf("invalid product selection: product %s does not exist", in.ProductID)
		}
		if err != nil {
			return err
		}
		if len(in.ProductOptions) != len(product.Processes) {
			return domain.Guardf("invalid product options: %s has %d processes but %d module lists were given",
				product.Name, len(product.Processes), len(in.ProductOptions))
		}
		for i, proc := range product.Processes {
			if err := proc.ValidatePath(in.ProductOptions[i]); err != nil {
				return domain.Guardf("invalid product options for %s: %v", proc.Name, err)
			}
		}

		costCode, err := s.costCode(ctx, plan)
		if err != nil {
			return err
		}
		var unpriced []string
		for i, proc := range product.Processes {
			missing, err := unpricedModules(ctx, s.Billing, proc, in.ProductOptions[i], costCode)
			if err != nil {
				return err
			}
			unpriced = append(unpriced, missing...)
		}
		if len(unpriced) > 0 {
			return domain.Guardf("the modules %s cannot be costed against cost code %s", joinNames(unpriced), costCode)
		}
		if plan.OriginalSetID == nil {
			return domain.Guardf("select a set before selecting a product")
		}

		// The first order keeps an existing locked clone; otherwise one is
		// taken now so the plan's set can change independently.
		var firstSet *string
		var clone *domain.MaterialSet
		if len(view.Orders) > 0 && view.Orders[0].SetID != nil {
			firstSet = view.Orders[0].SetID
		} else {
			clone, err = s.Sets.LockedClone(ctx, *plan.OriginalSetID)
			if err != nil {
				return domain.Lookupf("set service", err, "could not lock set %s", *plan.OriginalSetID)
			}
			firstSet = &clone.ID
		}

		now := time.Now().UTC()
		err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			orders := repository.NewSQLiteWorkOrderRepo(tx)
			if err := orders.DeleteByPlan(ctx, plan.ID); err != nil {
				return err
			}
			for i, proc := range product.Processes {
				o := &domain.WorkOrder{
					ID:         uuid.New().String(),
					PlanID:     plan.ID,
					ProcessID:  proc.ID,
					OrderIndex: i,
					Status:     domain.OrderQueued,
					ModuleIDs:  in.ProductOptions[i],
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if i == 0 {
					o.OriginalSetID = plan.OriginalSetID
					o.SetID = firstSet
				}
				if err := orders.Create(ctx, o); err != nil {
					return fmt.Errorf("creating work order for %s: %w", proc.Name, err)
				}
			}
			plan.ProductID = &product.ID
			plan.Comment = in.Comment
			plan.DesiredDate = in.DesiredDate
			plan.UpdatedAt = now
			return repository.NewSQLiteWorkPlanRepo(tx).Update(ctx, plan)
		})
		if err != nil && clone != nil {
			s.discardSet(ctx, clone.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return loadView(ctx, s.Plans, s.Orders, in.PlanID)
}

// discardSet deletes a clone that no committed order refers to.
func (s *planService) discardSet(ctx context.Context, id string) {
	if err := s.Sets.DeleteSet(context.WithoutCancel(ctx), id); err != nil {
		s.Logger.WarnContext(ctx, "set_cleanup_failed", "set_id", id, "err", err)
	}
}

// lockedOrder loads an order, then runs fn under its plan's lock with the
// freshly read plan view and the order's position in it.
func (s *planService) lockedOrder(ctx context.Context, orderID string, fn func(view *domain.PlanView, o *domain.WorkOrder, idx int) error) error {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	return withPlanLock(ctx, s.Locker, s.LockTTL, order.PlanID, s.Logger, func() error {
		view, err := loadView(ctx, s.Plans, s.Orders, order.PlanID)
		if err != nil {
			return err
		}
		o, idx := view.OrderByID(orderID)
		if o == nil {
			return fmt.Errorf("work order %s: %w", orderID, domain.ErrNotFound)
		}
		return fn(view, o, idx)
	})
}

// checkModules validates a replacement module list for one order.
func (s *planService) checkModules(ctx context.Context, plan *domain.WorkPlan, proc *domain.Process, moduleIDs []string) error {
	if err := proc.ValidatePath(moduleIDs); err != nil {
		return domain.Guardf("invalid module choice for %s: %v", proc.Name, err)
	}
	costCode, err := s.costCode(ctx, plan)
	if err != nil {
		return err
	}
	unpriced, err := unpricedModules(ctx, s.Billing, proc, moduleIDs, costCode)
	if err != nil {
		return err
	}
	if len(unpriced) > 0 {
		return domain.Guardf("module %s cannot be costed against cost code %s", joinNames(unpriced), costCode)
	}
	return nil
}

func (s *planService) ReconfigureOrder(ctx context.Context, in ReconfigureOrderInput) (view *domain.PlanView, err error) {
	defer observe(ctx, s.observer, "order.reconfigure", map[string]any{"work_order_id": in.OrderID}, &err)()

	var planID string
	err = s.lockedOrder(ctx, in.OrderID, func(view *domain.PlanView, o *domain.WorkOrder, _ int) error {
		planID = view.Plan.ID
		if !o.IsQueued() {
			return domain.Guardf("work order %s cannot be updated: it is %s", o.ID, o.Status)
		}
		proc, err := s.Catalogue.GetProcess(ctx, o.ProcessID)
		if err != nil {
			return err
		}
		if err := s.checkModules(ctx, view.Plan, proc, in.ModuleIDs); err != nil {
			return err
		}
		next := *o
		next.ModuleIDs = in.ModuleIDs
		next.UpdatedAt = time.Now().UTC()
		return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			orders := repository.NewSQLiteWorkOrderRepo(tx)
			if err := orders.Update(ctx, &next, domain.OrderQueued); err != nil {
				return err
			}
			return orders.ReplaceModules(ctx, next.ID, next.ModuleIDs)
		})
	})
	if err != nil {
		return nil, err
	}
	return loadView(ctx, s.Plans, s.Orders, planID)
}

func (s *planService) DispatchOrder(ctx context.Context, in DispatchOrderInput) (view *domain.PlanView, err error) {
	fields := map[string]any{"work_order_id": in.OrderID}
	defer observe(ctx, s.observer, "order.dispatch", fields, &err)()

	var planID string
	err = s.lockedOrder(ctx, in.OrderID, func(view *domain.PlanView, o *domain.WorkOrder, idx int) error {
		planID = view.Plan.ID
		fields["plan_id"] = planID
		return s.dispatch(ctx, view, o, idx, in.ModuleIDs)
	})
	if err != nil {
		return nil, err
	}
	return loadView(ctx, s.Plans, s.Orders, planID)
}

// sourceSet is the set an order consumes: the plan's set for the first
// order and the previous order's outputs after that.
func sourceSet(view *domain.PlanView, o *domain.WorkOrder, idx int) (*string, error) {
	if idx == 0 {
		if o.OriginalSetID != nil {
			return o.OriginalSetID, nil
		}
		if view.Plan.OriginalSetID == nil {
			return nil, domain.Guardf("work order %s has no set to work on: select a set first", o.ID)
		}
		return view.Plan.OriginalSetID, nil
	}
	prev := view.Orders[idx-1]
	if prev.FinishedSetID == nil {
		return nil, domain.Guardf("work order %s has no set to work on: order %d recorded no outputs", o.ID, idx)
	}
	return prev.FinishedSetID, nil
}

func (s *planService) dispatch(ctx context.Context, view *domain.PlanView, o *domain.WorkOrder, idx int, moduleIDs []string) error {
	if err := domain.CheckDispatchable(view.Orders, idx); err != nil {
		if next, i := domain.NextDispatchable(view.Orders); next != nil && next != o {
			return domain.Guardf("%s; order %d (%s) is next", err, i+1, next.ID)
		}
		return err
	}
	proc, err := s.Catalogue.GetProcess(ctx, o.ProcessID)
	if err != nil {
		return err
	}
	modules := o.ModuleIDs
	if moduleIDs != nil {
		if err := s.checkModules(ctx, view.Plan, proc, moduleIDs); err != nil {
			return err
		}
		modules = moduleIDs
	}

	srcID, err := sourceSet(view, o, idx)
	if err != nil {
		return err
	}
	src, err := s.Sets.FindSet(ctx, *srcID)
	if err != nil {
		return domain.Lookupf("set service", err, "could not look up set %s", *srcID)
	}
	if src == nil {
		return domain.Lookupf("set service", nil, "set %s not found", *srcID)
	}
	if len(src.MaterialIDs) == 0 {
		return domain.Guardf("set %s is empty", src.ID)
	}
	if err := s.checkAvailable(ctx, src.MaterialIDs); err != nil {
		return err
	}

	var dispatchSet *domain.MaterialSet
	var clone *domain.MaterialSet
	switch {
	case o.SetID != nil:
		dispatchSet, err = s.Sets.FindSet(ctx, *o.SetID)
		if err != nil {
			return domain.Lookupf("set service", err, "could not look up set %s", *o.SetID)
		}
		if dispatchSet == nil {
			return domain.Lookupf("set service", nil, "set %s not found", *o.SetID)
		}
	case src.Locked:
		dispatchSet = src
	default:
		clone, err = s.Sets.LockedClone(ctx, src.ID)
		if err != nil {
			return domain.Lookupf("set service", err, "could not lock set %s", src.ID)
		}
		dispatchSet = clone
	}

	costCode, err := s.costCode(ctx, view.Plan)
	if err != nil {
		return err
	}
	req := external.DispatchRequest{
		WorkOrderID: o.ID,
		PlanID:      view.Plan.ID,
		ProjectID:   view.Plan.ProjectID,
		CostCode:    costCode,
		ProcessName: proc.Name,
		SetID:       dispatchSet.ID,
		MaterialIDs: dispatchSet.MaterialIDs,
		DesiredDate: view.Plan.DesiredDate,
	}
	if view.Plan.Comment != nil {
		req.Comment = *view.Plan.Comment
	}
	if view.Plan.ProductID != nil {
		if product, err := s.Catalogue.GetProduct(ctx, *view.Plan.ProductID); err == nil {
			req.ProductName = product.Name
		}
	}
	for _, id := range modules {
		name, _ := proc.ModuleName(id)
		req.Modules = append(req.Modules, name)
	}

	status, err := domain.Transition(o.Status, domain.EventDispatch)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	next := *o
	next.Status = status
	next.DispatchDate = &now
	next.OriginalSetID = &src.ID
	next.SetID = &dispatchSet.ID
	next.ModuleIDs = modules
	next.UpdatedAt = now

	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		orders := repository.NewSQLiteWorkOrderRepo(tx)
		if err := orders.Update(ctx, &next, o.Status); err != nil {
			return err
		}
		if moduleIDs != nil {
			if err := orders.ReplaceModules(ctx, next.ID, modules); err != nil {
				return err
			}
		}
		// Sent last so a failed send rolls the status change back.
		if err := s.Dispatch.Send(ctx, req); err != nil {
			return domain.Lookupf("lims", err, "could not dispatch work order %s", o.ID)
		}
		db.AfterCommit(ctx, func(ctx context.Context) {
			publishEvent(ctx, s.Events, s.Logger, orderEvent(external.EventSubmitted, &next))
		})
		return nil
	})
	if err != nil && clone != nil {
		s.discardSet(ctx, clone.ID)
	}
	return err
}

func (s *planService) checkAvailable(ctx context.Context, ids []string) error {
	found, err := s.Materials.FindMaterials(ctx, ids)
	if err != nil {
		return domain.Lookupf("material registry", err, "could not look up materials")
	}
	byID := make(map[string]*domain.Material, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	var unavailable []string
	for _, id := range ids {
		if m, ok := byID[id]; !ok || !m.Available() {
			unavailable = append(unavailable, id)
		}
	}
	if len(unavailable) > 0 {
		return domain.Guardf("materials are not available: %s", joinNames(unavailable))
	}
	return nil
}
