package domain

import "time"

// WorkPlan groups the work orders a requester builds up against one set of
// materials and one product.
type WorkPlan struct {
	ID            string
	Owner         string
	ProjectID     *int64
	OriginalSetID *string
	ProductID     *string
	Comment       *string
	DesiredDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PlanView is a plan with its orders in process order and the derived status.
type PlanView struct {
	Plan   *WorkPlan
	Orders []*WorkOrder
	Status PlanStatus
}

// NewPlanView derives the plan status from orders.
func NewPlanView(plan *WorkPlan, orders []*WorkOrder) *PlanView {
	statuses := make([]OrderStatus, len(orders))
	for i, o := range orders {
		statuses[i] = o.Status
	}
	return &PlanView{Plan: plan, Orders: orders, Status: DerivePlanStatus(statuses)}
}

// InConstruction reports whether no order has left the queue yet.
func (v *PlanView) InConstruction() bool {
	return v.Status == PlanInConstruction
}

// OrderByID returns the order and its position, or nil and -1.
func (v *PlanView) OrderByID(id string) (*WorkOrder, int) {
	for i, o := range v.Orders {
		if o.ID == id {
			return o, i
		}
	}
	return nil, -1
}
