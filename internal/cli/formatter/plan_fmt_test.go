package formatter

import (
	"regexp"
	"testing"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/testutil"
	"github.com/stretchr/testify/assert"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestFormatPlan_NamesFromProduct(t *testing.T) {
	product := testutil.NewTestProduct("WGS")
	plan := testutil.NewTestPlan("alice", testutil.WithProject(7), testutil.WithOriginalSet("src"), testutil.WithProduct(product.ID))
	first := testutil.NewTestOrder(plan.ID, product.Processes[0].ID, 0,
		testutil.WithStatus(domain.OrderCompleted), testutil.WithModules(product.Processes[0].Modules[0].ID), testutil.WithFinishedSetID("done-1"))
	second := testutil.NewTestOrder(plan.ID, product.Processes[1].ID, 1,
		testutil.WithModules(product.Processes[1].Modules[1].ID))
	view := domain.NewPlanView(plan, []*domain.WorkOrder{first, second})

	out := stripANSI(FormatPlan(view, product))

	assert.Contains(t, out, "Work plan "+plan.ID)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "● ACTIVE")
	assert.Contains(t, out, "WGS")
	assert.Contains(t, out, "WGS process 1 A")
	assert.Contains(t, out, "WGS process 2 B")
	assert.Contains(t, out, "● COMPLETED")
	assert.Contains(t, out, "● QUEUED")
	assert.Contains(t, out, "done-1")
}

func TestFormatPlan_EmptyPlan(t *testing.T) {
	plan := testutil.NewTestPlan("bob")
	out := stripANSI(FormatPlan(domain.NewPlanView(plan, nil), nil))

	assert.Contains(t, out, "● IN CONSTRUCTION")
	assert.Contains(t, out, "--")
	assert.NotContains(t, out, "PROCESS")
}

func TestFormatProducts(t *testing.T) {
	product := testutil.NewTestProduct("WGS")
	out := stripANSI(FormatProducts([]*domain.Product{product}))

	assert.Contains(t, out, "DEFAULT PATH")
	assert.Contains(t, out, "WGS process 1")
	assert.Contains(t, out, "WGS process 2 A")

	assert.Contains(t, stripANSI(FormatProducts(nil)), "No products")
}

func TestRenderTable_AlignsStyledCells(t *testing.T) {
	out := stripANSI(RenderTable([]string{"A", "B"}, [][]string{{StyleGreen.Render("long cell"), "x"}, {"s", "y"}}))
	assert.Equal(t, "A          B\n─────────  ─\nlong cell  x\ns          y\n", out)
}
