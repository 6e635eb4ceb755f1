package testutil

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/google/uuid"
)

// WorkPlan options
type PlanOption func(*domain.WorkPlan)

func WithProject(id int64) PlanOption {
	return func(p *domain.WorkPlan) {
		p.ProjectID = &id
	}
}

func WithOriginalSet(id string) PlanOption {
	return func(p *domain.WorkPlan) {
		p.OriginalSetID = &id
	}
}

func WithProduct(id string) PlanOption {
	return func(p *domain.WorkPlan) {
		p.ProductID = &id
	}
}

func WithDesiredDate(d time.Time) PlanOption {
	return func(p *domain.WorkPlan) {
		p.DesiredDate = &d
	}
}

func NewTestPlan(owner string, opts ...PlanOption) *domain.WorkPlan {
	now := time.Now().UTC()
	p := &domain.WorkPlan{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkOrder options
type OrderOption func(*domain.WorkOrder)

func WithStatus(s domain.OrderStatus) OrderOption {
	return func(o *domain.WorkOrder) {
		o.Status = s
	}
}

func WithSetID(id string) OrderOption {
	return func(o *domain.WorkOrder) {
		o.SetID = &id
	}
}

func WithFinishedSetID(id string) OrderOption {
	return func(o *domain.WorkOrder) {
		o.FinishedSetID = &id
	}
}

func WithModules(ids ...string) OrderOption {
	return func(o *domain.WorkOrder) {
		o.ModuleIDs = ids
	}
}

func NewTestOrder(planID, processID string, index int, opts ...OrderOption) *domain.WorkOrder {
	now := time.Now().UTC()
	o := &domain.WorkOrder{
		ID:         uuid.New().String(),
		PlanID:     planID,
		ProcessID:  processID,
		OrderIndex: index,
		Status:     domain.OrderQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewTestProduct builds a product with two processes. Each process offers
// module "A" on its default path and module "B" as an alternative, and every
// path is a single module.
func NewTestProduct(name string) *domain.Product {
	p := &domain.Product{ID: uuid.New().String(), Name: name}
	for stage := 0; stage < 2; stage++ {
		proc := &domain.Process{ID: uuid.New().String(), Name: fmt.Sprintf("%s process %d", name, stage+1), Stage: stage}
		a := &domain.ProcessModule{ID: uuid.New().String(), ProcessID: proc.ID, Name: fmt.Sprintf("%s A", proc.Name)}
		b := &domain.ProcessModule{ID: uuid.New().String(), ProcessID: proc.ID, Name: fmt.Sprintf("%s B", proc.Name)}
		proc.Modules = []*domain.ProcessModule{a, b}
		proc.Pairings = []*domain.ModulePairing{
			pairing(proc.ID, nil, &a.ID, true),
			pairing(proc.ID, &a.ID, nil, true),
			pairing(proc.ID, nil, &b.ID, false),
			pairing(proc.ID, &b.ID, nil, false),
		}
		p.Processes = append(p.Processes, proc)
	}
	return p
}

func pairing(processID string, from, to *string, def bool) *domain.ModulePairing {
	return &domain.ModulePairing{ID: uuid.New().String(), ProcessID: processID, FromModuleID: from, ToModuleID: to, DefaultPath: def}
}

// MaterialSchemaJSON is a material schema in the registry's dialect.
const MaterialSchemaJSON = `{"required": ["gender", "donor_id", "phenotype", "supplier_name", "common_name"], "type": "object",
 "properties": {
  "gender": {"required": true, "type": "string", "enum": ["male", "female", "unknown"]},
  "date_of_receipt": {"type": "string", "format": "date"},
  "material_type": {"enum": ["blood", "dna"], "type": "string"},
  "donor_id": {"required": true, "type": "string"},
  "phenotype": {"required": true, "type": "string"},
  "supplier_name": {"required": true, "type": "string"},
  "common_name": {"required": true, "type": "string", "enum": ["Homo Sapiens", "Mouse"]},
  "parents": {"type": "list", "schema": {"type": "uuid", "data_relation": {"field": "_id", "resource": "materials"}}},
  "owner_id": {"type": "string"},
  "available": {"type": "boolean"}}}`

// ContainerSchemaJSON is a container schema in the registry's dialect.
const ContainerSchemaJSON = `{"required": ["num_of_cols", "num_of_rows", "col_is_alpha", "row_is_alpha"], "type": "object",
 "properties": {
  "num_of_cols": {"max": 9999, "required": true, "type": "integer", "min": 1},
  "barcode": {"minlength": 6, "unique": true, "type": "string"},
  "num_of_rows": {"max": 9999, "required": true, "type": "integer", "min": 1},
  "col_is_alpha": {"required": true, "type": "boolean"},
  "print_count": {"max": 9999, "required": false, "type": "integer", "min": 0},
  "row_is_alpha": {"required": true, "type": "boolean"},
  "slots": {"type": "list", "schema": {"type": "dict", "schema": {"material": {"type": "uuid"}, "address": {"type": "string"}}}}}}`

// CompletionMessage returns a well-formed completion message for orderID.
// It updates materialIDs, creates one material at XYZ-123 A:1 and declares
// XYZ-123 as a 4x6 plate with alphabetic rows.
func CompletionMessage(orderID string, materialIDs ...string) map[string]any {
	updated := make([]any, len(materialIDs))
	for i, id := range materialIDs {
		updated[i] = map[string]any{"_id": id, "phenotype": "processed"}
	}
	return map[string]any{
		"work_order": map[string]any{
			"work_order_id":     orderID,
			"comment":           "all done",
			"updated_materials": updated,
			"new_materials": []any{
				map[string]any{
					"gender":        "female",
					"donor_id":      "D1",
					"phenotype":     "p",
					"supplier_name": "S1",
					"common_name":   "Homo Sapiens",
					"container":     map[string]any{"barcode": "XYZ-123", "address": "A:1"},
				},
			},
			"containers": []any{
				map[string]any{
					"barcode":      "XYZ-123",
					"num_of_rows":  4,
					"num_of_cols":  6,
					"row_is_alpha": true,
					"col_is_alpha": false,
				},
			},
		},
	}
}

// OrderSection returns the "work_order" object of a message built by
// CompletionMessage.
func OrderSection(msg map[string]any) map[string]any {
	return msg["work_order"].(map[string]any)
}

// MustJSON marshals v or fails the test.
func MustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}
	return data
}
