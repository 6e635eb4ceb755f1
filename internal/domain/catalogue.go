package domain

import "fmt"

type Product struct {
	ID        string
	Name      string
	Processes []*Process
}

// Process is one stage of a product. Its modules are linked by pairings; a
// pairing with no From starts a path, one with no To ends it.
type Process struct {
	ID       string
	Name     string
	Stage    int
	Modules  []*ProcessModule
	Pairings []*ModulePairing
}

type ProcessModule struct {
	ID        string
	ProcessID string
	Name      string
}

type ModulePairing struct {
	ID           string
	ProcessID    string
	FromModuleID *string
	ToModuleID   *string
	DefaultPath  bool
}

func (p *Process) module(id string) *ProcessModule {
	for _, m := range p.Modules {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (p *Process) linked(from, to *string) bool {
	for _, pr := range p.Pairings {
		if sameRef(pr.FromModuleID, from) && sameRef(pr.ToModuleID, to) {
			return true
		}
	}
	return false
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ValidatePath checks that moduleIDs walk the pairing graph from a start
// pairing to an end pairing using only modules of this process.
func (p *Process) ValidatePath(moduleIDs []string) error {
	if len(moduleIDs) == 0 {
		return fmt.Errorf("process %q: no modules chosen", p.Name)
	}
	var prev *string
	for i := range moduleIDs {
		id := moduleIDs[i]
		if p.module(id) == nil {
			return fmt.Errorf("process %q: module %s is not part of this process", p.Name, id)
		}
		if !p.linked(prev, &id) {
			if prev == nil {
				return fmt.Errorf("process %q: module %s cannot start the process", p.Name, id)
			}
			return fmt.Errorf("process %q: module %s cannot follow module %s", p.Name, id, *prev)
		}
		prev = &id
	}
	if !p.linked(prev, nil) {
		return fmt.Errorf("process %q: module %s cannot end the process", p.Name, *prev)
	}
	return nil
}

// DefaultPath follows default pairings from the start to the end of the
// process.
func (p *Process) DefaultPath() ([]string, error) {
	var path []string
	var cur *string
	seen := map[string]bool{}
	for {
		var next *ModulePairing
		for _, pr := range p.Pairings {
			if pr.DefaultPath && sameRef(pr.FromModuleID, cur) {
				next = pr
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("process %q: default path is broken", p.Name)
		}
		if next.ToModuleID == nil {
			if len(path) == 0 {
				return nil, fmt.Errorf("process %q: default path is empty", p.Name)
			}
			return path, nil
		}
		id := *next.ToModuleID
		if seen[id] {
			return nil, fmt.Errorf("process %q: default path loops at module %s", p.Name, id)
		}
		seen[id] = true
		path = append(path, id)
		cur = &id
	}
}

// ModuleName resolves a module id within the process.
func (p *Process) ModuleName(id string) (string, bool) {
	if m := p.module(id); m != nil {
		return m.Name, true
	}
	return "", false
}
