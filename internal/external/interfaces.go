package external

import (
	"context"
	"time"

	"github.com/alexanderramin/workorders/internal/domain"
)

// MaterialRegistry is the external store of material records.
type MaterialRegistry interface {
	// CreateMaterials creates one material per attribute bag, in order.
	CreateMaterials(ctx context.Context, attrs []map[string]any) ([]*domain.Material, error)
	// FindMaterials returns the materials that exist among ids.
	FindMaterials(ctx context.Context, ids []string) ([]*domain.Material, error)
	// UpdateMaterial replaces the attribute bag of an existing material.
	UpdateMaterial(ctx context.Context, id string, attrs map[string]any) (*domain.Material, error)
	DestroyMaterial(ctx context.Context, id string) error
}

// SchemaName identifies a schema document the registry publishes.
type SchemaName string

const (
	MaterialSchema      SchemaName = "materials/json_schema"
	ContainerSchema     SchemaName = "containers/json_schema"
	MaterialPatchSchema SchemaName = "materials/json_patch_schema"
)

// SchemaSource serves the registry-published JSON schemas.
type SchemaSource interface {
	Schema(ctx context.Context, name SchemaName) ([]byte, error)
}

// ContainerRegistry is the external store of containers and their contents.
type ContainerRegistry interface {
	// FindContainer returns nil, nil when no container has barcode.
	FindContainer(ctx context.Context, barcode string) (*domain.Container, error)
	CreateContainer(ctx context.Context, c *domain.Container) (*domain.Container, error)
	// UpdateContainer writes the container's occupant and slot contents.
	UpdateContainer(ctx context.Context, c *domain.Container) error
	DestroyContainer(ctx context.Context, id string) error
}

// SetService manages named, lockable sets of materials.
type SetService interface {
	// FindSet returns the set with its material ids, or nil, nil if absent.
	FindSet(ctx context.Context, id string) (*domain.MaterialSet, error)
	// LockedClone creates a locked copy of an existing set.
	LockedClone(ctx context.Context, id string) (*domain.MaterialSet, error)
	CreateLockedSet(ctx context.Context, name string, materialIDs []string) (*domain.MaterialSet, error)
	DeleteSet(ctx context.Context, id string) error
}

// ProjectDirectory looks up projects.
type ProjectDirectory interface {
	// FindProject returns nil, nil when the project does not exist.
	FindProject(ctx context.Context, id int64) (*domain.Project, error)
}

// Billing validates cost codes and prices modules.
type Billing interface {
	ValidateCostCode(ctx context.Context, costCode string) (bool, error)
	// ModuleCost returns nil when the module cannot be costed against
	// costCode.
	ModuleCost(ctx context.Context, moduleName, costCode string) (*float64, error)
}

// DispatchRequest is what the downstream lab system receives for an order.
type DispatchRequest struct {
	WorkOrderID string     `json:"work_order_id"`
	PlanID      string     `json:"work_plan_id"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	CostCode    string     `json:"cost_code,omitempty"`
	ProductName string     `json:"product_name,omitempty"`
	ProcessName string     `json:"process_name"`
	Modules     []string   `json:"modules"`
	SetID       string     `json:"set_id"`
	MaterialIDs []string   `json:"material_ids"`
	DesiredDate *time.Time `json:"desired_date,omitempty"`
	Comment     string     `json:"comment,omitempty"`
}

// DispatchSink forwards dispatched orders downstream.
type DispatchSink interface {
	Send(ctx context.Context, req DispatchRequest) error
}

type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
)

// Event is a lifecycle notification about a work order.
type Event struct {
	Type        EventType `json:"type"`
	WorkOrderID string    `json:"work_order_id"`
	PlanID      string    `json:"work_plan_id"`
	Status      string    `json:"status"`
	Comment     string    `json:"comment,omitempty"`
	At          time.Time `json:"at"`
}

// EventSink publishes lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}
