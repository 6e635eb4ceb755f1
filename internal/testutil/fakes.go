package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
)

// FakeMaterials is an in-memory MaterialRegistry. Setting an Err field
// makes the matching call fail.
type FakeMaterials struct {
	mu        sync.Mutex
	seq       int
	Materials map[string]*domain.Material

	CreateErr  error
	UpdateErr  map[string]error
	DestroyErr error
	// ShortCreate drops the last material from a CreateMaterials batch.
	ShortCreate bool
}

func NewFakeMaterials(materials ...*domain.Material) *FakeMaterials {
	f := &FakeMaterials{Materials: map[string]*domain.Material{}, UpdateErr: map[string]error{}}
	for _, m := range materials {
		f.Materials[m.ID] = m
	}
	return f
}

// AvailableMaterial returns a material flagged available.
func AvailableMaterial(id string) *domain.Material {
	return &domain.Material{ID: id, Attributes: map[string]any{"available": true}}
}

func (f *FakeMaterials) CreateMaterials(_ context.Context, attrs []map[string]any) ([]*domain.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	n := len(attrs)
	if f.ShortCreate && n > 0 {
		n--
	}
	out := make([]*domain.Material, 0, n)
	for _, a := range attrs[:n] {
		f.seq++
		m := &domain.Material{ID: fmt.Sprintf("new-%d", f.seq), Attributes: copyAttrs(a)}
		f.Materials[m.ID] = m
		out = append(out, m)
	}
	return out, nil
}

func (f *FakeMaterials) FindMaterials(_ context.Context, ids []string) ([]*domain.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Material
	for _, id := range ids {
		if m, ok := f.Materials[id]; ok {
			out = append(out, &domain.Material{ID: m.ID, Attributes: copyAttrs(m.Attributes)})
		}
	}
	return out, nil
}

func (f *FakeMaterials) UpdateMaterial(_ context.Context, id string, attrs map[string]any) (*domain.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.UpdateErr[id]; err != nil {
		return nil, err
	}
	m, ok := f.Materials[id]
	if !ok {
		return nil, external.ErrRemoteNotFound
	}
	m.Attributes = copyAttrs(attrs)
	return m, nil
}

func (f *FakeMaterials) DestroyMaterial(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DestroyErr != nil {
		return f.DestroyErr
	}
	delete(f.Materials, id)
	return nil
}

// Get returns the stored material or nil.
func (f *FakeMaterials) Get(id string) *domain.Material {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Materials[id]
}

// Count returns how many materials exist.
func (f *FakeMaterials) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Materials)
}

func copyAttrs(a map[string]any) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// FakeContainers is an in-memory ContainerRegistry keyed by barcode.
type FakeContainers struct {
	mu         sync.Mutex
	seq        int
	Containers map[string]*domain.Container

	FindErr    error
	CreateErr  error
	UpdateErr  error
	DestroyErr error
	// OnFind runs before each lookup; tests use it to change the registry
	// between validation and execution.
	OnFind func(barcode string)

	Updates int
}

func NewFakeContainers(containers ...*domain.Container) *FakeContainers {
	f := &FakeContainers{Containers: map[string]*domain.Container{}}
	for _, c := range containers {
		f.Containers[c.Barcode] = c
	}
	return f
}

// Plate returns an empty rows x cols container with alphabetic rows.
func Plate(id, barcode string, rows, cols int) *domain.Container {
	c := &domain.Container{ID: id, Barcode: barcode, NumOfRows: rows, NumOfCols: cols, RowIsAlpha: true}
	c.Slots = c.Shape().EmptySlots()
	return c
}

// Tube returns an empty 1x1 container.
func Tube(id, barcode string) *domain.Container {
	return &domain.Container{ID: id, Barcode: barcode, NumOfRows: 1, NumOfCols: 1}
}

func (f *FakeContainers) FindContainer(_ context.Context, barcode string) (*domain.Container, error) {
	if f.OnFind != nil {
		f.OnFind(barcode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	c, ok := f.Containers[barcode]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (f *FakeContainers) CreateContainer(_ context.Context, c *domain.Container) (*domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	stored := c.Clone()
	stored.ID = fmt.Sprintf("container-%d", f.seq)
	f.Containers[stored.Barcode] = stored
	return stored.Clone(), nil
}

func (f *FakeContainers) UpdateContainer(_ context.Context, c *domain.Container) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if _, ok := f.Containers[c.Barcode]; !ok {
		return external.ErrRemoteNotFound
	}
	f.Containers[c.Barcode] = c.Clone()
	f.Updates++
	return nil
}

func (f *FakeContainers) DestroyContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DestroyErr != nil {
		return f.DestroyErr
	}
	for bc, c := range f.Containers {
		if c.ID == id {
			delete(f.Containers, bc)
		}
	}
	return nil
}

// Get returns the stored container or nil.
func (f *FakeContainers) Get(barcode string) *domain.Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Containers[barcode]
}

// Remove deletes barcode from the registry.
func (f *FakeContainers) Remove(barcode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Containers, barcode)
}

// FakeSets is an in-memory SetService.
type FakeSets struct {
	mu   sync.Mutex
	seq  int
	Sets map[string]*domain.MaterialSet

	CloneErr  error
	CreateErr error
	DeleteErr error

	Clones int
}

func NewFakeSets(sets ...*domain.MaterialSet) *FakeSets {
	f := &FakeSets{Sets: map[string]*domain.MaterialSet{}}
	for _, s := range sets {
		f.Sets[s.ID] = s
	}
	return f
}

func (f *FakeSets) FindSet(_ context.Context, id string) (*domain.MaterialSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sets[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.MaterialIDs = append([]string(nil), s.MaterialIDs...)
	return &cp, nil
}

func (f *FakeSets) LockedClone(_ context.Context, id string) (*domain.MaterialSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloneErr != nil {
		return nil, f.CloneErr
	}
	src, ok := f.Sets[id]
	if !ok {
		return nil, external.ErrRemoteNotFound
	}
	f.Clones++
	return f.store(src.Name+" (locked)", src.MaterialIDs), nil
}

func (f *FakeSets) CreateLockedSet(_ context.Context, name string, materialIDs []string) (*domain.MaterialSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	return f.store(name, materialIDs), nil
}

func (f *FakeSets) store(name string, ids []string) *domain.MaterialSet {
	f.seq++
	s := &domain.MaterialSet{ID: fmt.Sprintf("set-%d", f.seq), Name: name, Locked: true, MaterialIDs: append([]string(nil), ids...)}
	f.Sets[s.ID] = s
	return s
}

func (f *FakeSets) DeleteSet(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.Sets, id)
	return nil
}

// Get returns the stored set or nil.
func (f *FakeSets) Get(id string) *domain.MaterialSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Sets[id]
}

// FakeProjects is an in-memory ProjectDirectory.
type FakeProjects struct {
	Projects map[int64]*domain.Project
	Err      error
}

func NewFakeProjects(projects ...*domain.Project) *FakeProjects {
	f := &FakeProjects{Projects: map[int64]*domain.Project{}}
	for _, p := range projects {
		f.Projects[p.ID] = p
	}
	return f
}

func (f *FakeProjects) FindProject(_ context.Context, id int64) (*domain.Project, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Projects[id], nil
}

// FakeBilling accepts every cost code in Valid and prices every module not
// listed in Unpriced.
type FakeBilling struct {
	Valid    map[string]bool
	Unpriced map[string]bool
	Err      error
}

func NewFakeBilling(validCodes ...string) *FakeBilling {
	f := &FakeBilling{Valid: map[string]bool{}, Unpriced: map[string]bool{}}
	for _, c := range validCodes {
		f.Valid[c] = true
	}
	return f
}

func (f *FakeBilling) ValidateCostCode(_ context.Context, costCode string) (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	return f.Valid[costCode], nil
}

func (f *FakeBilling) ModuleCost(_ context.Context, moduleName, _ string) (*float64, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Unpriced[moduleName] {
		return nil, nil
	}
	cost := 10.0
	return &cost, nil
}

// FakeDispatch records dispatch requests.
type FakeDispatch struct {
	mu   sync.Mutex
	Sent []external.DispatchRequest
	Err  error
}

func (f *FakeDispatch) Send(_ context.Context, req external.DispatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, req)
	return nil
}

// FakeEvents records published events.
type FakeEvents struct {
	mu     sync.Mutex
	Events []external.Event
	Err    error
}

func (f *FakeEvents) Publish(_ context.Context, ev external.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Events = append(f.Events, ev)
	return nil
}

// Types returns the published event types in order.
func (f *FakeEvents) Types() []external.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]external.EventType, len(f.Events))
	for i, ev := range f.Events {
		out[i] = ev.Type
	}
	return out
}

// FakeSchemas serves the registry schema fixtures and counts fetches.
type FakeSchemas struct {
	mu      sync.Mutex
	Docs    map[external.SchemaName][]byte
	Err     error
	Fetches int
}

func NewFakeSchemas() *FakeSchemas {
	return &FakeSchemas{Docs: map[external.SchemaName][]byte{
		external.MaterialSchema:      []byte(MaterialSchemaJSON),
		external.ContainerSchema:     []byte(ContainerSchemaJSON),
		external.MaterialPatchSchema: []byte(MaterialSchemaJSON),
	}}
}

func (f *FakeSchemas) Schema(_ context.Context, name external.SchemaName) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Fetches++
	doc, ok := f.Docs[name]
	if !ok {
		return nil, external.ErrRemoteNotFound
	}
	return doc, nil
}
