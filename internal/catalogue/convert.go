package catalogue

import (
	"fmt"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/google/uuid"
)

// Convert turns a validated file into domain products with fresh ids. Each
// product's default path is checked once the graph is built.
// Call Validate first; Convert assumes module references resolve.
func Convert(f *File) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0, len(f.Products))
	for _, p := range f.Products {
		product := &domain.Product{ID: uuid.New().String(), Name: p.Name}
		for stage, proc := range p.Processes {
			process, err := convertProcess(stage, &proc)
			if err != nil {
				return nil, fmt.Errorf("product %q: %w", p.Name, err)
			}
			product.Processes = append(product.Processes, process)
		}
		products = append(products, product)
	}
	return products, nil
}

func convertProcess(stage int, p *ProcessImport) (*domain.Process, error) {
	proc := &domain.Process{ID: uuid.New().String(), Name: p.Name, Stage: stage}
	ids := make(map[string]string, len(p.Modules))
	for _, name := range p.Modules {
		m := &domain.ProcessModule{ID: uuid.New().String(), ProcessID: proc.ID, Name: name}
		ids[name] = m.ID
		proc.Modules = append(proc.Modules, m)
	}

	resolve := func(name *string) (*string, error) {
		if name == nil {
			return nil, nil
		}
		id, ok := ids[*name]
		if !ok {
			return nil, fmt.Errorf("process %q: unknown module %q", p.Name, *name)
		}
		return &id, nil
	}
	for _, pr := range p.Pairings {
		from, err := resolve(pr.From)
		if err != nil {
			return nil, err
		}
		to, err := resolve(pr.To)
		if err != nil {
			return nil, err
		}
		proc.Pairings = append(proc.Pairings, &domain.ModulePairing{
			ID:           uuid.New().String(),
			ProcessID:    proc.ID,
			FromModuleID: from,
			ToModuleID:   to,
			DefaultPath:  pr.Default,
		})
	}

	if _, err := proc.DefaultPath(); err != nil {
		return nil, err
	}
	return proc, nil
}
