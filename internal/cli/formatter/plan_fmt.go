package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/workorders/internal/domain"
)

// FormatPlan renders a plan and its orders. product resolves process and
// module names; when nil the raw IDs are shown.
func FormatPlan(v *domain.PlanView, product *domain.Product) string {
	p := v.Plan
	var b strings.Builder

	productName := Optional(p.ProductID)
	if product != nil {
		productName = product.Name
	}
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Owner"), p.Owner)
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Status"), PlanStatusPill(v.Status))
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Set"), Optional(p.OriginalSetID))
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Project"), OptionalInt(p.ProjectID))
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Product"), productName)
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Desired"), OptionalDate(p.DesiredDate))
	if p.Comment != nil && *p.Comment != "" {
		fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render("Comment"), *p.Comment)
	}

	if len(v.Orders) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(v.Orders))
		for _, o := range v.Orders {
			process, modules := o.ProcessID, o.ModuleIDs
			if proc := findProcess(product, o.ProcessID); proc != nil {
				process = proc.Name
				modules = moduleNames(proc, o.ModuleIDs)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", o.OrderIndex+1),
				TruncID(o.ID),
				process,
				OrderStatusPill(o.Status),
				strings.Join(modules, " > "),
				Optional(o.SetID),
				Optional(o.FinishedSetID),
			})
		}
		b.WriteString(RenderTable([]string{"#", "ORDER", "PROCESS", "STATUS", "MODULES", "SET", "FINISHED"}, rows))
	}

	return RenderBox("Work plan "+p.ID, strings.TrimRight(b.String(), "\n"))
}

// FormatProducts renders the catalogue as one row per process.
func FormatProducts(products []*domain.Product) string {
	if len(products) == 0 {
		return StyleDim.Render("No products in the catalogue.") + "\n"
	}
	rows := [][]string{}
	for _, p := range products {
		for i, proc := range p.Processes {
			name := p.Name
			if i > 0 {
				name = ""
			}
			path, err := proc.DefaultPath()
			defaults := StyleDim.Render("--")
			if err == nil {
				defaults = strings.Join(moduleNames(proc, path), " > ")
			}
			rows = append(rows, []string{name, fmt.Sprintf("%d", proc.Stage), proc.Name, fmt.Sprintf("%d", len(proc.Modules)), defaults})
		}
	}
	return RenderTable([]string{"PRODUCT", "STAGE", "PROCESS", "MODULES", "DEFAULT PATH"}, rows)
}

func findProcess(product *domain.Product, id string) *domain.Process {
	if product == nil {
		return nil
	}
	for _, proc := range product.Processes {
		if proc.ID == id {
			return proc
		}
	}
	return nil
}

func moduleNames(proc *domain.Process, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := id
		for _, m := range proc.Modules {
			if m.ID == id {
				name = m.Name
				break
			}
		}
		names = append(names, name)
	}
	return names
}
