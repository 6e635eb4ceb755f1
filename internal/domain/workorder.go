package domain

import "time"

// WorkOrder is one process of a plan, queued for, or undergoing, outsourced
// processing.
type WorkOrder struct {
	ID         string
	PlanID     string
	ProcessID  string
	OrderIndex int
	Status     OrderStatus
	// OriginalSetID is the set the order was planned against.
	OriginalSetID *string
	// SetID is the locked set sent out with the order.
	SetID *string
	// FinishedSetID is the locked set of outputs, recorded on completion.
	FinishedSetID *string
	DispatchDate  *time.Time
	Comment       string
	// ModuleIDs is the ordered module choice list.
	ModuleIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsQueued reports whether the order can still be reconfigured.
func (o *WorkOrder) IsQueued() bool { return o.Status == OrderQueued }

// CheckDispatchable enforces the dispatch ordering rule: only a queued order
// whose predecessors are all completed may go out.
func CheckDispatchable(orders []*WorkOrder, idx int) error {
	if idx < 0 || idx >= len(orders) {
		return Guardf("work order does not belong to this plan")
	}
	target := orders[idx]
	if target.Status != OrderQueued {
		return Guardf("work order %s cannot be dispatched: it is %s", target.ID, target.Status)
	}
	for i := 0; i < idx; i++ {
		if orders[i].Status != OrderCompleted {
			return Guardf("work order %s cannot be dispatched until order %d is completed (currently %s)", target.ID, i+1, orders[i].Status)
		}
	}
	return nil
}

// NextDispatchable returns the first queued order whose predecessors are all
// completed, or nil and -1 when the plan has none.
func NextDispatchable(orders []*WorkOrder) (*WorkOrder, int) {
	for i, o := range orders {
		switch o.Status {
		case OrderCompleted:
			continue
		case OrderQueued:
			return o, i
		default:
			return nil, -1
		}
	}
	return nil, -1
}
