package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanService_CreateAndGet(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()

	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanInConstruction, view.Status)

	got, err := svc.Get(ctx, view.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Plan.Owner)
	assert.Empty(t, got.Orders)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Create(ctx, "")
	assert.True(t, domain.IsGuard(err))
}

func TestPlanService_GetMissing(t *testing.T) {
	h := newHarness(t)
	_, err := h.planService(nil).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelectSet_UnknownSet(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.SelectSet(ctx, SelectSetInput{PlanID: view.Plan.ID, SetID: "missing"})
	require.Error(t, err)
	assert.True(t, domain.IsLookup(err))
	assert.Contains(t, err.Error(), "set missing not found")
}

func TestSelectProject_RequiresSet(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.SelectProject(ctx, SelectProjectInput{PlanID: view.Plan.ID, ProjectID: testProjectID})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "select a set")
}

func TestSelectProject_UnknownProject(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.SelectSet(ctx, SelectSetInput{PlanID: view.Plan.ID, SetID: sourceSetID})
	require.NoError(t, err)

	_, err = svc.SelectProject(ctx, SelectProjectInput{PlanID: view.Plan.ID, ProjectID: 99})
	require.Error(t, err)
	assert.True(t, domain.IsLookup(err))
	assert.Contains(t, err.Error(), "project 99 not found")
	got, err := svc.Get(ctx, view.Plan.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Plan.ProjectID)
}

func TestSelectProject_InvalidCostCode(t *testing.T) {
	h := newHarness(t)
	h.billing.Valid = map[string]bool{}
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.SelectSet(ctx, SelectSetInput{PlanID: view.Plan.ID, SetID: sourceSetID})
	require.NoError(t, err)

	_, err = svc.SelectProject(ctx, SelectProjectInput{PlanID: view.Plan.ID, ProjectID: testProjectID})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "cost code")
}

func TestSelectProject_BillingDown(t *testing.T) {
	h := newHarness(t)
	h.billing.Err = errors.New("connection refused")
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.SelectSet(ctx, SelectSetInput{PlanID: view.Plan.ID, SetID: sourceSetID})
	require.NoError(t, err)

	_, err = svc.SelectProject(ctx, SelectProjectInput{PlanID: view.Plan.ID, ProjectID: testProjectID})
	require.Error(t, err)
	assert.True(t, domain.IsLookup(err))
}

func TestSelectProject_InProgress(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.dispatchedPlan(t, svc)

	_, err := svc.SelectProject(context.Background(), SelectProjectInput{PlanID: view.Plan.ID, ProjectID: testProjectID})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "in progress")
}

func TestConfigureProduct_RequiresProject(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.ConfigureProduct(ctx, ConfigureProductInput{
		PlanID: view.Plan.ID, ProductID: h.product.ID, ProductOptions: h.defaultOptions(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select a project")
}

func TestConfigureProduct_RejectsInvalidSelections(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.readyPlan(t, svc)
	ctx := context.Background()

	wrongProcess := h.defaultOptions()
	wrongProcess[0] = []string{h.product.Processes[1].Modules[0].ID}

	cases := []struct {
		name string
		in   ConfigureProductInput
	}{
		{"no options", ConfigureProductInput{ProductID: h.product.ID}},
		{"no product", ConfigureProductInput{ProductOptions: h.defaultOptions()}},
		{"unknown product", ConfigureProductInput{ProductID: "nope", ProductOptions: h.defaultOptions()}},
		{"too few lists", ConfigureProductInput{ProductID: h.product.ID, ProductOptions: h.defaultOptions()[:1]}},
		{"module of another process", ConfigureProductInput{ProductID: h.product.ID, ProductOptions: wrongProcess}},
		{"empty path", ConfigureProductInput{ProductID: h.product.ID, ProductOptions: [][]string{{}, {}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.PlanID = view.Plan.ID
			_, err := svc.ConfigureProduct(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, domain.IsGuard(err))
			assert.Contains(t, err.Error(), "invalid")
		})
	}

	got, err := svc.Get(ctx, view.Plan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Orders)
	assert.Zero(t, h.sets.Clones)
}

func TestConfigureProduct_UncostableModules(t *testing.T) {
	h := newHarness(t)
	name := h.product.Processes[1].Modules[0].Name
	h.billing.Unpriced[name] = true
	svc := h.planService(nil)
	view := h.readyPlan(t, svc)

	_, err := svc.ConfigureProduct(context.Background(), ConfigureProductInput{
		PlanID: view.Plan.ID, ProductID: h.product.ID, ProductOptions: h.defaultOptions(),
	})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "modules "+name+" cannot be costed against cost code "+testCostCode)
}

func TestConfigureProduct_CreatesQueuedOrders(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.readyPlan(t, svc)
	comment := "rush"

	view, err := svc.ConfigureProduct(context.Background(), ConfigureProductInput{
		PlanID: view.Plan.ID, ProductID: h.product.ID, ProductOptions: h.defaultOptions(), Comment: &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanInConstruction, view.Status)
	require.NotNil(t, view.Plan.ProductID)
	assert.Equal(t, h.product.ID, *view.Plan.ProductID)
	require.NotNil(t, view.Plan.Comment)
	assert.Equal(t, "rush", *view.Plan.Comment)

	require.Len(t, view.Orders, 2)
	first, second := view.Orders[0], view.Orders[1]
	assert.Equal(t, h.product.Processes[0].ID, first.ProcessID)
	assert.Equal(t, h.product.Processes[1].ID, second.ProcessID)
	assert.Equal(t, domain.OrderQueued, first.Status)
	assert.Equal(t, h.defaultOptions()[0], first.ModuleIDs)

	require.NotNil(t, first.OriginalSetID)
	assert.Equal(t, sourceSetID, *first.OriginalSetID)
	require.NotNil(t, first.SetID)
	clone := h.sets.Get(*first.SetID)
	require.NotNil(t, clone)
	assert.True(t, clone.Locked)
	assert.Equal(t, []string{"m1", "m2"}, clone.MaterialIDs)
	assert.Nil(t, second.SetID)
}

func TestConfigureProduct_ReplacesOrdersAndKeepsClone(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)
	oldFirst := view.Orders[0]

	opts := h.defaultOptions()
	opts[1] = []string{h.moduleB(1)}
	view, err := svc.ConfigureProduct(context.Background(), ConfigureProductInput{
		PlanID: view.Plan.ID, ProductID: h.product.ID, ProductOptions: opts,
	})
	require.NoError(t, err)
	require.Len(t, view.Orders, 2)
	assert.NotEqual(t, oldFirst.ID, view.Orders[0].ID)
	assert.Equal(t, *oldFirst.SetID, *view.Orders[0].SetID)
	assert.Equal(t, 1, h.sets.Clones)
	assert.Equal(t, []string{h.moduleB(1)}, view.Orders[1].ModuleIDs)

	_, err = h.orders.GetByID(context.Background(), oldFirst.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfigureProduct_RollbackDiscardsClone(t *testing.T) {
	h := newHarness(t)
	view := h.readyPlan(t, h.planService(nil))

	// Exec #1 clears the orders, #2-#5 insert two orders and their module
	// choices, #6 updates the plan.
	failUoW := &testutil.FailOnNthExecUoW{DB: h.db, FailOn: 6, Err: fmt.Errorf("injected plan update failure")}
	svc := h.planService(failUoW)

	_, err := svc.ConfigureProduct(context.Background(), ConfigureProductInput{
		PlanID: view.Plan.ID, ProductID: h.product.ID, ProductOptions: h.defaultOptions(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected plan update failure")

	got, err := svc.Get(context.Background(), view.Plan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Orders, "orders should not survive the rollback")
	assert.Nil(t, got.Plan.ProductID)
	assert.Equal(t, 1, h.sets.Clones)
	assert.Nil(t, h.sets.Get("set-1"), "the unused clone should be deleted")
}

func TestSelectSet_RetargetsFirstOrder(t *testing.T) {
	h := newHarness(t)
	h.sets.Sets["other"] = &domain.MaterialSet{ID: "other", MaterialIDs: []string{"m1"}}
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)

	view, err := svc.SelectSet(context.Background(), SelectSetInput{PlanID: view.Plan.ID, SetID: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", *view.Plan.OriginalSetID)
	assert.Equal(t, "other", *view.Orders[0].OriginalSetID)
	assert.Nil(t, view.Orders[0].SetID)
}

func TestReconfigureOrder(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)
	ctx := context.Background()

	view, err := svc.ReconfigureOrder(ctx, ReconfigureOrderInput{OrderID: view.Orders[1].ID, ModuleIDs: []string{h.moduleB(1)}})
	require.NoError(t, err)
	assert.Equal(t, []string{h.moduleB(1)}, view.Orders[1].ModuleIDs)

	_, err = svc.ReconfigureOrder(ctx, ReconfigureOrderInput{OrderID: view.Orders[1].ID, ModuleIDs: []string{h.moduleB(0)}})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "invalid module choice")
}

func TestReconfigureOrder_Uncostable(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)
	name := h.product.Processes[0].Modules[1].Name
	h.billing.Unpriced[name] = true

	_, err := svc.ReconfigureOrder(context.Background(), ReconfigureOrderInput{OrderID: view.Orders[0].ID, ModuleIDs: []string{h.moduleB(0)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module "+name+" cannot be costed")
}

func TestReconfigureOrder_NotQueued(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.dispatchedPlan(t, svc)

	_, err := svc.ReconfigureOrder(context.Background(), ReconfigureOrderInput{OrderID: view.Orders[0].ID, ModuleIDs: []string{h.moduleB(0)}})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("work order %s cannot be updated: it is active", view.Orders[0].ID))
}

func TestReconfigureOrder_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.planService(nil).ReconfigureOrder(context.Background(), ReconfigureOrderInput{OrderID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDispatchOrder_SendsFirstOrder(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.dispatchedPlan(t, svc)

	assert.Equal(t, domain.PlanActive, view.Status)
	first := view.Orders[0]
	require.NotNil(t, first.DispatchDate)
	require.Len(t, h.dispatch.Sent, 1)
	req := h.dispatch.Sent[0]
	assert.Equal(t, first.ID, req.WorkOrderID)
	assert.Equal(t, *first.SetID, req.SetID)
	assert.Equal(t, []string{"m1", "m2"}, req.MaterialIDs)
	assert.Equal(t, []string{h.product.Processes[0].Modules[0].Name}, req.Modules)
	assert.Equal(t, testCostCode, req.CostCode)
	assert.Equal(t, h.product.Name, req.ProductName)
	assert.Equal(t, []external.EventType{external.EventSubmitted}, h.events.Types())
	assert.Equal(t, 1, h.sets.Clones, "the clone taken at configuration is reused")
}

func TestDispatchOrder_ReplacesModules(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)

	view, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[0].ID, ModuleIDs: []string{h.moduleB(0)}})
	require.NoError(t, err)
	assert.Equal(t, []string{h.moduleB(0)}, view.Orders[0].ModuleIDs)
	assert.Equal(t, []string{h.product.Processes[0].Modules[1].Name}, h.dispatch.Sent[0].Modules)
}

func TestDispatchOrder_Guards(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *harness)
		order int
		want  string
	}{
		{name: "later order before the first completes", order: 1, want: "cannot be dispatched"},
		{name: "empty set", order: 0, want: "set src is empty", setup: func(h *harness) {
			h.sets.Get(sourceSetID).MaterialIDs = nil
		}},
		{name: "unavailable material", order: 0, want: "materials are not available: m2", setup: func(h *harness) {
			h.materials.Get("m2").Attributes["available"] = false
		}},
		{name: "vanished material", order: 0, want: "materials are not available: m1", setup: func(h *harness) {
			delete(h.materials.Materials, "m1")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			svc := h.planService(nil)
			view := h.configuredPlan(t, svc)
			if tc.setup != nil {
				tc.setup(h)
			}

			_, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[tc.order].ID})
			require.Error(t, err)
			assert.True(t, domain.IsGuard(err))
			assert.Contains(t, err.Error(), tc.want)

			got, err := svc.Get(context.Background(), view.Plan.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderQueued, got.Orders[tc.order].Status)
			assert.Empty(t, h.dispatch.Sent)
			assert.Empty(t, h.events.Events)
		})
	}
}

func TestDispatchOrder_GuardNamesTheNextOrder(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)

	_, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[1].ID})
	require.Error(t, err)
	assert.True(t, domain.IsGuard(err))
	assert.Contains(t, err.Error(), "until order 1 is completed")
	assert.Contains(t, err.Error(), fmt.Sprintf("; order 1 (%s) is next", view.Orders[0].ID))
}

func TestDispatchOrder_AlreadyActive(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.dispatchedPlan(t, svc)

	_, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[0].ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be dispatched")
	assert.Len(t, h.dispatch.Sent, 1)
}

func TestDispatchOrder_SendFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.dispatch.Err = errors.New("lims unavailable")
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)

	_, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[0].ID})
	require.Error(t, err)
	assert.True(t, domain.IsLookup(err))
	assert.Contains(t, err.Error(), "lims unavailable")

	got, err := svc.Get(context.Background(), view.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderQueued, got.Orders[0].Status)
	assert.Nil(t, got.Orders[0].DispatchDate)
	assert.Empty(t, h.events.Events, "no event for a rolled back dispatch")
}

func TestDispatchOrder_ClonesUnlockedSetAtDispatch(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.configuredPlan(t, svc)
	_, err := svc.SelectSet(context.Background(), SelectSetInput{PlanID: view.Plan.ID, SetID: sourceSetID})
	require.NoError(t, err)

	view, err = svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, h.sets.Clones)
	assert.Equal(t, "set-2", *view.Orders[0].SetID)
}

func TestDispatchOrder_SecondOrderUsesFinishedSet(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	view := h.dispatchedPlan(t, svc)
	ctx := context.Background()

	out, err := h.completionService().Complete(ctx, completionMessage(t, view.Orders[0].ID))
	require.NoError(t, err)
	require.True(t, out.Validation.OK(), out.Validation.Summary())
	finished := *out.Order.FinishedSetID
	assert.True(t, h.materials.Get("new-1").Available(), "new outputs are dispatchable")

	view, err = svc.DispatchOrder(ctx, DispatchOrderInput{OrderID: view.Orders[1].ID})
	require.NoError(t, err)
	second := view.Orders[1]
	assert.Equal(t, domain.OrderActive, second.Status)
	assert.Equal(t, finished, *second.OriginalSetID)
	assert.Equal(t, finished, *second.SetID, "a locked finished set is sent as is")
	assert.ElementsMatch(t, []string{"m1", "m2", "new-1"}, h.dispatch.Sent[1].MaterialIDs)
}

func TestPlanService_Delete(t *testing.T) {
	h := newHarness(t)
	svc := h.planService(nil)
	ctx := context.Background()

	view := h.configuredPlan(t, svc)
	require.NoError(t, svc.Delete(ctx, view.Plan.ID))
	_, err := svc.Get(ctx, view.Plan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	started := h.dispatchedPlan(t, svc)
	err = svc.Delete(ctx, started.Plan.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
}
