package catalogue

import "fmt"

// Validate checks a parsed file before conversion and returns every
// problem found.
func Validate(f *File) []error {
	var errs []error
	if len(f.Products) == 0 {
		errs = append(errs, fmt.Errorf("products: at least one product is required"))
	}
	names := map[string]bool{}
	for i, p := range f.Products {
		prefix := fmt.Sprintf("products[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if names[p.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate product %q", prefix, p.Name))
		}
		names[p.Name] = true

		if len(p.Processes) == 0 {
			errs = append(errs, fmt.Errorf("%s.processes: at least one process is required", prefix))
		}
		for j, proc := range p.Processes {
			errs = append(errs, validateProcess(fmt.Sprintf("%s.processes[%d]", prefix, j), &proc)...)
		}
	}
	return errs
}

func validateProcess(prefix string, p *ProcessImport) []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
	}
	if len(p.Modules) == 0 {
		errs = append(errs, fmt.Errorf("%s.modules: at least one module is required", prefix))
	}
	modules := map[string]bool{}
	for k, m := range p.Modules {
		switch {
		case m == "":
			errs = append(errs, fmt.Errorf("%s.modules[%d]: name is required", prefix, k))
		case modules[m]:
			errs = append(errs, fmt.Errorf("%s.modules[%d]: duplicate module %q", prefix, k, m))
		}
		modules[m] = true
	}

	var starts, ends, defaultStarts int
	for k, pr := range p.Pairings {
		at := fmt.Sprintf("%s.pairings[%d]", prefix, k)
		if pr.From == nil && pr.To == nil {
			errs = append(errs, fmt.Errorf("%s: from or to is required", at))
			continue
		}
		if pr.From != nil && !modules[*pr.From] {
			errs = append(errs, fmt.Errorf("%s.from: unknown module %q", at, *pr.From))
		}
		if pr.To != nil && !modules[*pr.To] {
			errs = append(errs, fmt.Errorf("%s.to: unknown module %q", at, *pr.To))
		}
		if pr.From == nil {
			starts++
			if pr.Default {
				defaultStarts++
			}
		}
		if pr.To == nil {
			ends++
		}
	}
	if len(p.Modules) > 0 {
		if starts == 0 {
			errs = append(errs, fmt.Errorf("%s.pairings: no pairing starts the process", prefix))
		}
		if ends == 0 {
			errs = append(errs, fmt.Errorf("%s.pairings: no pairing ends the process", prefix))
		}
		if defaultStarts != 1 {
			errs = append(errs, fmt.Errorf("%s.pairings: exactly one default pairing must start the process (found %d)", prefix, defaultStarts))
		}
	}
	return errs
}
