package service

import (
	"context"
	"time"

	"github.com/alexanderramin/workorders/internal/catalogue"
	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/domain"
)

type PlanService interface {
	Create(ctx context.Context, owner string) (*domain.PlanView, error)
	Get(ctx context.Context, id string) (*domain.PlanView, error)
	List(ctx context.Context, owner string) ([]*domain.PlanView, error)
	// Delete removes a plan that is still in construction.
	Delete(ctx context.Context, id string) error

	SelectSet(ctx context.Context, in SelectSetInput) (*domain.PlanView, error)
	SelectProject(ctx context.Context, in SelectProjectInput) (*domain.PlanView, error)
	ConfigureProduct(ctx context.Context, in ConfigureProductInput) (*domain.PlanView, error)
	ReconfigureOrder(ctx context.Context, in ReconfigureOrderInput) (*domain.PlanView, error)
	DispatchOrder(ctx context.Context, in DispatchOrderInput) (*domain.PlanView, error)
}

type SelectSetInput struct {
	PlanID string
	SetID  string
}

type SelectProjectInput struct {
	PlanID    string
	ProjectID int64
}

// ConfigureProductInput picks the product and one module list per process,
// in stage order. Nil ProductOptions means none were supplied.
type ConfigureProductInput struct {
	PlanID         string
	ProductID      string
	ProductOptions [][]string
	Comment        *string
	DesiredDate    *time.Time
}

type ReconfigureOrderInput struct {
	OrderID   string
	ModuleIDs []string
}

// DispatchOrderInput sends an order out. A non-nil ModuleIDs replaces the
// order's modules in the same commit.
type DispatchOrderInput struct {
	OrderID   string
	ModuleIDs []string
}

// CompletionOutcome is the result of handling a lab message. When
// Validation is not OK nothing was written and Order is the unchanged
// order, if it exists.
type CompletionOutcome struct {
	Order      *domain.WorkOrder
	Validation *completion.Result
}

type CompletionService interface {
	Complete(ctx context.Context, message []byte) (*CompletionOutcome, error)
	Cancel(ctx context.Context, message []byte) (*CompletionOutcome, error)
	// Withdraw cancels a queued order without a message.
	Withdraw(ctx context.Context, orderID string) (*domain.WorkOrder, error)
}

// ImportResult holds the outcome of a catalogue import.
type ImportResult struct {
	Products     []*domain.Product
	ProcessCount int
	ModuleCount  int
}

type CatalogueService interface {
	ImportFile(ctx context.Context, path string) (*ImportResult, error)
	Import(ctx context.Context, f *catalogue.File) (*ImportResult, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}
