package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/lock"
	"github.com/alexanderramin/workorders/internal/repository"
	"github.com/alexanderramin/workorders/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testProjectID = int64(7)
	testCostCode  = "S1234"
	sourceSetID   = "src"
)

// harness wires the services to an in-memory store and fake registries.
type harness struct {
	db        *sql.DB
	plans     *repository.SQLiteWorkPlanRepo
	orders    *repository.SQLiteWorkOrderRepo
	catalogue *repository.SQLiteCatalogueRepo
	locker    lock.Locker

	materials  *testutil.FakeMaterials
	containers *testutil.FakeContainers
	sets       *testutil.FakeSets
	projects   *testutil.FakeProjects
	billing    *testutil.FakeBilling
	dispatch   *testutil.FakeDispatch
	events     *testutil.FakeEvents
	schemas    *testutil.FakeSchemas
	rejections *recordingRejections

	product *domain.Product
}

type recordingRejections struct {
	rules []completion.Rule
}

func (r *recordingRejections) MessageRejected(_ string, rule completion.Rule) {
	r.rules = append(r.rules, rule)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	h := &harness{
		db:         database,
		plans:      repository.NewSQLiteWorkPlanRepo(database),
		orders:     repository.NewSQLiteWorkOrderRepo(database),
		catalogue:  repository.NewSQLiteCatalogueRepo(database),
		locker:     lock.NewMemoryLocker(),
		materials:  testutil.NewFakeMaterials(testutil.AvailableMaterial("m1"), testutil.AvailableMaterial("m2")),
		containers: testutil.NewFakeContainers(),
		sets: testutil.NewFakeSets(&domain.MaterialSet{
			ID: sourceSetID, Name: "Source", MaterialIDs: []string{"m1", "m2"},
		}),
		projects:   testutil.NewFakeProjects(&domain.Project{ID: testProjectID, Name: "Genomes", CostCode: testCostCode}),
		billing:    testutil.NewFakeBilling(testCostCode),
		dispatch:   &testutil.FakeDispatch{},
		events:     &testutil.FakeEvents{},
		schemas:    testutil.NewFakeSchemas(),
		rejections: &recordingRejections{},
		product:    testutil.NewTestProduct("WGS"),
	}
	require.NoError(t, h.catalogue.CreateProduct(context.Background(), h.product))
	return h
}

func (h *harness) planService(uow db.UnitOfWork) PlanService {
	if uow == nil {
		uow = testutil.NewTestUoW(h.db)
	}
	return NewPlanService(PlanDeps{
		Plans:     h.plans,
		Orders:    h.orders,
		Catalogue: h.catalogue,
		UoW:       uow,
		Materials: h.materials,
		Sets:      h.sets,
		Projects:  h.projects,
		Billing:   h.billing,
		Dispatch:  h.dispatch,
		Events:    h.events,
		Locker:    h.locker,
	})
}

func (h *harness) completionService() CompletionService {
	return NewCompletionService(CompletionDeps{
		Orders:     h.orders,
		UoW:        testutil.NewTestUoW(h.db),
		Materials:  h.materials,
		Containers: h.containers,
		Sets:       h.sets,
		Schemas:    completion.NewSchemaCache(h.schemas, time.Minute),
		Events:     h.events,
		Locker:     h.locker,
		Rejections: h.rejections,
	})
}

// defaultOptions picks module "A" of every process.
func (h *harness) defaultOptions() [][]string {
	opts := make([][]string, len(h.product.Processes))
	for i, proc := range h.product.Processes {
		opts[i] = []string{proc.Modules[0].ID}
	}
	return opts
}

func (h *harness) moduleB(stage int) string {
	return h.product.Processes[stage].Modules[1].ID
}

// readyPlan creates a plan with the source set and project selected.
func (h *harness) readyPlan(t *testing.T, svc PlanService) *domain.PlanView {
	t.Helper()
	ctx := context.Background()
	view, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.SelectSet(ctx, SelectSetInput{PlanID: view.Plan.ID, SetID: sourceSetID})
	require.NoError(t, err)
	view, err = svc.SelectProject(ctx, SelectProjectInput{PlanID: view.Plan.ID, ProjectID: testProjectID})
	require.NoError(t, err)
	return view
}

// configuredPlan is readyPlan with the test product on its default path.
func (h *harness) configuredPlan(t *testing.T, svc PlanService) *domain.PlanView {
	t.Helper()
	view := h.readyPlan(t, svc)
	view, err := svc.ConfigureProduct(context.Background(), ConfigureProductInput{
		PlanID:         view.Plan.ID,
		ProductID:      h.product.ID,
		ProductOptions: h.defaultOptions(),
	})
	require.NoError(t, err)
	require.Len(t, view.Orders, 2)
	return view
}

// dispatchedPlan is configuredPlan with its first order dispatched.
func (h *harness) dispatchedPlan(t *testing.T, svc PlanService) *domain.PlanView {
	t.Helper()
	view := h.configuredPlan(t, svc)
	view, err := svc.DispatchOrder(context.Background(), DispatchOrderInput{OrderID: view.Orders[0].ID})
	require.NoError(t, err)
	require.Equal(t, domain.OrderActive, view.Orders[0].Status)
	return view
}

// completionMessage reports m1 and m2 processed and one new material on a
// new plate.
func completionMessage(t *testing.T, orderID string) []byte {
	t.Helper()
	return testutil.MustJSON(t, testutil.CompletionMessage(orderID, "m1", "m2"))
}
