package httpapi

import (
	"time"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/domain"
)

const dateLayout = "2006-01-02"

type planJSON struct {
	ID            string       `json:"id"`
	Owner         string       `json:"owner"`
	Status        string       `json:"status"`
	ProjectID     *int64       `json:"project_id"`
	OriginalSetID *string      `json:"original_set_id"`
	ProductID     *string      `json:"product_id"`
	Comment       *string      `json:"comment"`
	DesiredDate   *string      `json:"desired_date"`
	Orders        []*orderJSON `json:"work_orders"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type orderJSON struct {
	ID            string     `json:"id"`
	PlanID        string     `json:"work_plan_id"`
	ProcessID     string     `json:"process_id"`
	OrderIndex    int        `json:"order_index"`
	Status        string     `json:"status"`
	OriginalSetID *string    `json:"original_set_id"`
	SetID         *string    `json:"set_id"`
	FinishedSetID *string    `json:"finished_set_id"`
	DispatchDate  *time.Time `json:"dispatch_date"`
	Comment       string     `json:"comment,omitempty"`
	ModuleIDs     []string   `json:"module_ids"`
}

func toPlanJSON(v *domain.PlanView) *planJSON {
	p := v.Plan
	out := &planJSON{
		ID:            p.ID,
		Owner:         p.Owner,
		Status:        string(v.Status),
		ProjectID:     p.ProjectID,
		OriginalSetID: p.OriginalSetID,
		ProductID:     p.ProductID,
		Comment:       p.Comment,
		Orders:        make([]*orderJSON, 0, len(v.Orders)),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.DesiredDate != nil {
		d := p.DesiredDate.Format(dateLayout)
		out.DesiredDate = &d
	}
	for _, o := range v.Orders {
		out.Orders = append(out.Orders, toOrderJSON(o))
	}
	return out
}

func toOrderJSON(o *domain.WorkOrder) *orderJSON {
	if o == nil {
		return nil
	}
	ids := o.ModuleIDs
	if ids == nil {
		ids = []string{}
	}
	return &orderJSON{
		ID:            o.ID,
		PlanID:        o.PlanID,
		ProcessID:     o.ProcessID,
		OrderIndex:    o.OrderIndex,
		Status:        string(o.Status),
		OriginalSetID: o.OriginalSetID,
		SetID:         o.SetID,
		FinishedSetID: o.FinishedSetID,
		DispatchDate:  o.DispatchDate,
		Comment:       o.Comment,
		ModuleIDs:     ids,
	}
}

type productJSON struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Processes []*processJSON `json:"processes,omitempty"`
}

type processJSON struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Stage       int          `json:"stage"`
	Modules     []moduleJSON `json:"modules"`
	DefaultPath []string     `json:"default_path"`
}

type moduleJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toProductJSON(p *domain.Product) *productJSON {
	out := &productJSON{ID: p.ID, Name: p.Name}
	for _, proc := range p.Processes {
		pj := &processJSON{ID: proc.ID, Name: proc.Name, Stage: proc.Stage}
		for _, m := range proc.Modules {
			pj.Modules = append(pj.Modules, moduleJSON{ID: m.ID, Name: m.Name})
		}
		pj.DefaultPath, _ = proc.DefaultPath()
		out.Processes = append(out.Processes, pj)
	}
	return out
}

type createPlanRequest struct {
	Owner string `json:"owner"`
}

type selectSetRequest struct {
	SetID string `json:"set_id"`
}

type selectProjectRequest struct {
	ProjectID int64 `json:"project_id"`
}

type configureProductRequest struct {
	ProductID      string     `json:"product_id"`
	ProductOptions [][]string `json:"product_options"`
	Comment        *string    `json:"comment"`
	DesiredDate    *string    `json:"desired_date"`
}

type modulesRequest struct {
	ModuleIDs []string `json:"module_ids"`
}

type messageResponse struct {
	WorkOrder  *orderJSON         `json:"work_order"`
	Validation *completion.Result `json:"validation"`
}
