package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_RecordsOutputs(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	orderID := view.Orders[0].ID
	ctx := context.Background()

	out, err := h.completionService().Complete(ctx, completionMessage(t, orderID))
	require.NoError(t, err)
	require.True(t, out.Validation.OK(), out.Validation.Summary())
	assert.NotEmpty(t, out.Validation.SchemaVersion)

	order := out.Order
	assert.Equal(t, domain.OrderCompleted, order.Status)
	assert.Equal(t, "all done", order.Comment)
	require.NotNil(t, order.FinishedSetID)
	finished := h.sets.Get(*order.FinishedSetID)
	require.NotNil(t, finished)
	assert.True(t, finished.Locked)
	assert.ElementsMatch(t, []string{"m1", "m2", "new-1"}, finished.MaterialIDs)

	assert.Equal(t, "processed", h.materials.Get("m1").Attributes["phenotype"])
	plate := h.containers.Get("XYZ-123")
	require.NotNil(t, plate)
	assert.Equal(t, []string{"new-1"}, plate.MaterialIDs())

	stored, err := h.orders.GetByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
	assert.Equal(t, []external.EventType{external.EventSubmitted, external.EventCompleted}, h.events.Types())

	plan, err := h.planService(nil).Get(ctx, view.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, plan.Status)
}

func TestComplete_InvalidMessageWritesNothing(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	ctx := context.Background()

	msg := testutil.CompletionMessage(view.Orders[0].ID, "m1")
	out, err := h.completionService().Complete(ctx, testutil.MustJSON(t, msg))
	require.NoError(t, err)
	require.False(t, out.Validation.OK())
	assert.True(t, out.Validation.Failed(completion.RuleOrderMaterials))
	assert.Contains(t, h.rejections.rules, completion.RuleOrderMaterials)
	assert.Equal(t, domain.OrderActive, out.Order.Status)

	assert.Equal(t, 2, h.materials.Count())
	assert.Nil(t, h.containers.Get("XYZ-123"))
	stored, err := h.orders.GetByID(ctx, view.Orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderActive, stored.Status)
}

func TestComplete_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	out, err := h.completionService().Complete(context.Background(), completionMessage(t, "ghost"))
	require.NoError(t, err)
	assert.Nil(t, out.Order)
	assert.True(t, out.Validation.Failed(completion.RuleOrderState))
	assert.Contains(t, out.Validation.Summary(), "work order ghost does not exist")
}

func TestComplete_QueuedOrderIsRejected(t *testing.T) {
	h := newHarness(t)
	view := h.configuredPlan(t, h.planService(nil))

	out, err := h.completionService().Complete(context.Background(), completionMessage(t, view.Orders[0].ID))
	require.NoError(t, err)
	assert.True(t, out.Validation.Failed(completion.RuleOrderState))
	assert.Contains(t, out.Validation.Summary(), "must be active")
}

func TestComplete_MalformedJSON(t *testing.T) {
	h := newHarness(t)
	out, err := h.completionService().Complete(context.Background(), []byte(`{"work_order": `))
	require.NoError(t, err)
	assert.True(t, out.Validation.Failed(completion.RuleSchema))
	assert.Equal(t, []completion.Rule{completion.RuleSchema}, h.rejections.rules)
}

func TestComplete_SchemaSourceDown(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	h.schemas.Err = errors.New("registry offline")

	_, err := h.completionService().Complete(context.Background(), completionMessage(t, view.Orders[0].ID))
	require.Error(t, err)
	assert.True(t, domain.IsLookup(err))
	assert.Contains(t, err.Error(), "registry offline")
}

func TestComplete_StepFailureCompensates(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	h.materials.CreateErr = errors.New("registry rejected batch")
	ctx := context.Background()

	_, err := h.completionService().Complete(ctx, completionMessage(t, view.Orders[0].ID))
	require.Error(t, err)
	var failure *completion.StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "create_materials", failure.Step)
	assert.Contains(t, err.Error(), "registry rejected batch")

	assert.Nil(t, h.containers.Get("XYZ-123"), "the created plate is destroyed")
	stored, err := h.orders.GetByID(ctx, view.Orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderActive, stored.Status)
	assert.Equal(t, []external.EventType{external.EventSubmitted}, h.events.Types())
}

func TestComplete_EventFailureDoesNotFailTheRun(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	h.events.Err = errors.New("broker down")

	out, err := h.completionService().Complete(context.Background(), completionMessage(t, view.Orders[0].ID))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, out.Order.Status)
}

func TestCancel_RecordsOutputsWithoutFinishedSet(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	ctx := context.Background()

	out, err := h.completionService().Cancel(ctx, completionMessage(t, view.Orders[0].ID))
	require.NoError(t, err)
	require.True(t, out.Validation.OK(), out.Validation.Summary())
	assert.Equal(t, domain.OrderCancelled, out.Order.Status)
	assert.Nil(t, out.Order.FinishedSetID)
	assert.Equal(t, 3, h.materials.Count())
	assert.Equal(t, []external.EventType{external.EventSubmitted, external.EventCancelled}, h.events.Types())

	plan, err := h.planService(nil).Get(ctx, view.Plan.ID)
	require.NoError(t, err)
	_, err = h.planService(nil).DispatchOrder(ctx, DispatchOrderInput{OrderID: plan.Orders[1].ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be dispatched")
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	view := h.dispatchedPlan(t, h.planService(nil))
	svc := h.completionService()
	ctx := context.Background()

	order, err := svc.Withdraw(ctx, view.Orders[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, order.Status)
	assert.Equal(t, []external.EventType{external.EventSubmitted, external.EventCancelled}, h.events.Types())

	_, err = svc.Withdraw(ctx, view.Orders[0].ID)
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "only a queued work order can be withdrawn")

	_, err = svc.Withdraw(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
