package completion

import "github.com/alexanderramin/workorders/internal/domain"

// Builder assembles the step list for a validated message.
type Builder struct {
	reg   Registries
	write OrderWriter
}

func NewBuilder(reg Registries, write OrderWriter) *Builder {
	return &Builder{reg: reg, write: write}
}

// Completion returns the steps that record the lab's results and mark
// order completed.
func (b *Builder) Completion(order *domain.WorkOrder, msg *Message) []Step {
	state := &runState{}
	steps := b.materialSteps(msg, state)
	steps = append(steps,
		&FinishedSetStep{reg: b.reg, orderID: order.ID, updated: msg.UpdatedIDs(), state: state},
		b.orderStep(order, domain.EventComplete, msg, state),
	)
	return steps
}

// Cancellation records whatever the lab produced and marks order cancelled.
// No finished set is created.
func (b *Builder) Cancellation(order *domain.WorkOrder, msg *Message) []Step {
	state := &runState{}
	steps := b.materialSteps(msg, state)
	return append(steps, b.orderStep(order, domain.EventCancel, msg, state))
}

func (b *Builder) materialSteps(msg *Message, state *runState) []Step {
	wo := msg.WorkOrder
	var steps []Step
	if len(wo.Containers) > 0 {
		steps = append(steps, &CreateContainersStep{reg: b.reg, specs: wo.Containers})
	}
	if len(wo.NewMaterials) > 0 {
		steps = append(steps, &CreateMaterialsStep{reg: b.reg, materials: wo.NewMaterials, state: state})
	}
	if len(wo.UpdatedMaterials) > 0 {
		steps = append(steps, &RelocationStep{reg: b.reg, updated: wo.UpdatedMaterials})
	}
	return steps
}

func (b *Builder) orderStep(order *domain.WorkOrder, event domain.OrderEvent, msg *Message, state *runState) Step {
	return &UpdateWorkOrderStep{
		write:   b.write,
		order:   order,
		event:   event,
		comment: msg.WorkOrder.Comment,
		state:   state,
	}
}
