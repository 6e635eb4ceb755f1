package domain

import "fmt"

type OrderStatus string

const (
	OrderQueued    OrderStatus = "queued"
	OrderActive    OrderStatus = "active"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type OrderEvent string

const (
	EventDispatch OrderEvent = "dispatch"
	EventComplete OrderEvent = "complete"
	EventCancel   OrderEvent = "cancel"
	// EventWithdraw cancels an order that was never dispatched.
	EventWithdraw OrderEvent = "withdraw"
)

// Transition returns the status an order moves to when ev is applied in
// state s, or a GuardViolation when the event is not allowed there.
func Transition(s OrderStatus, ev OrderEvent) (OrderStatus, error) {
	switch ev {
	case EventDispatch:
		if s == OrderQueued {
			return OrderActive, nil
		}
		return s, Guardf("work order cannot be dispatched while %s", s)
	case EventComplete:
		if s == OrderActive {
			return OrderCompleted, nil
		}
		return s, Guardf("work order is not active (currently %s)", s)
	case EventCancel:
		if s == OrderActive {
			return OrderCancelled, nil
		}
		return s, Guardf("work order is not active (currently %s)", s)
	case EventWithdraw:
		if s == OrderQueued {
			return OrderCancelled, nil
		}
		return s, Guardf("only a queued work order can be withdrawn (currently %s)", s)
	default:
		return s, fmt.Errorf("unknown order event %q", ev)
	}
}

type PlanStatus string

const (
	PlanInConstruction PlanStatus = "in_construction"
	PlanActive         PlanStatus = "active"
	PlanClosed         PlanStatus = "closed"
)

// DerivePlanStatus computes a plan's status from its orders. A plan with no
// dispatched order is still in construction; once every order is terminal
// it is closed.
func DerivePlanStatus(statuses []OrderStatus) PlanStatus {
	if len(statuses) == 0 {
		return PlanInConstruction
	}
	started := false
	allTerminal := true
	for _, s := range statuses {
		if s != OrderQueued {
			started = true
		}
		if !s.IsTerminal() {
			allTerminal = false
		}
	}
	switch {
	case allTerminal:
		return PlanClosed
	case started:
		return PlanActive
	default:
		return PlanInConstruction
	}
}
