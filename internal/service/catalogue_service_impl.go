package service

import (
	"context"
	"fmt"

	"github.com/alexanderramin/workorders/internal/catalogue"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/repository"
)

type catalogueService struct {
	products repository.CatalogueRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewCatalogueService(products repository.CatalogueRepo, uow db.UnitOfWork, observers ...UseCaseObserver) CatalogueService {
	return &catalogueService{products: products, uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *catalogueService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := catalogue.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalogue file: %w", err)
	}
	return s.Import(ctx, f)
}

// Import writes every product of f in one transaction. A product whose
// name is already catalogued fails the whole import.
func (s *catalogueService) Import(ctx context.Context, f *catalogue.File) (res *ImportResult, err error) {
	defer observe(ctx, s.observer, "catalogue.import", map[string]any{"products": len(f.Products)}, &err)()

	if errs := catalogue.Validate(f); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}
	products, err := catalogue.Convert(f)
	if err != nil {
		return nil, fmt.Errorf("converting catalogue: %w", err)
	}

	res = &ImportResult{Products: products}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteCatalogueRepo(tx)
		for _, p := range products {
			_, err := repo.GetProductByName(ctx, p.Name)
			if err == nil {
				return domain.Guardf("product %q already exists", p.Name)
			}
			if !isNotFound(err) {
				return err
			}
			if err := repo.CreateProduct(ctx, p); err != nil {
				return fmt.Errorf("creating product %q: %w", p.Name, err)
			}
			res.ProcessCount += len(p.Processes)
			for _, proc := range p.Processes {
				res.ModuleCount += len(proc.Modules)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *catalogueService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.products.ListProducts(ctx)
}

func (s *catalogueService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func formatValidationErrors(errs []error) error {
	msg := fmt.Sprintf("catalogue validation failed (%d errors):", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return domain.Guardf("%s", msg)
}
