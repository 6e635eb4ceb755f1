package repository

import (
	"context"

	"github.com/alexanderramin/workorders/internal/domain"
)

type WorkPlanRepo interface {
	Create(ctx context.Context, p *domain.WorkPlan) error
	GetByID(ctx context.Context, id string) (*domain.WorkPlan, error)
	List(ctx context.Context, owner string) ([]*domain.WorkPlan, error)
	Update(ctx context.Context, p *domain.WorkPlan) error
	Delete(ctx context.Context, id string) error
}

type WorkOrderRepo interface {
	// Create inserts the order together with its module choices.
	Create(ctx context.Context, o *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	// ListByPlan returns the plan's orders in process order.
	ListByPlan(ctx context.Context, planID string) ([]*domain.WorkOrder, error)
	// Update writes o only if its stored status still equals expected;
	// otherwise it returns domain.ErrStaleState.
	Update(ctx context.Context, o *domain.WorkOrder, expected domain.OrderStatus) error
	ReplaceModules(ctx context.Context, orderID string, moduleIDs []string) error
	DeleteByPlan(ctx context.Context, planID string) error
}

type CatalogueRepo interface {
	// CreateProduct inserts the product with its processes, modules and
	// pairings.
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProcess(ctx context.Context, id string) (*domain.Process, error)
}
