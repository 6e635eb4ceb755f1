package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
)

// Step is one compensable action of a completion or cancellation run.
// Apply either succeeds or leaves nothing behind; Compensate undoes a
// successful Apply.
type Step interface {
	Name() string
	Apply(ctx context.Context) error
	Compensate(ctx context.Context) error
	step()
}

// Registries are the external systems the steps write to.
type Registries struct {
	Materials  external.MaterialRegistry
	Containers external.ContainerRegistry
	Sets       external.SetService
}

// OrderWriter persists o if its stored status still equals expected.
type OrderWriter func(ctx context.Context, o *domain.WorkOrder, expected domain.OrderStatus) error

// runState carries values one step produces for a later one.
type runState struct {
	created       []*domain.Material
	finishedSetID *string
}

func (s *runState) createdIDs() []string {
	ids := make([]string, len(s.created))
	for i, m := range s.created {
		ids[i] = m.ID
	}
	return ids
}

// CreateContainersStep creates the declared containers that the registry
// does not have yet. Containers that already exist are left alone.
type CreateContainersStep struct {
	reg     Registries
	specs   []ContainerSpec
	created []*domain.Container
}

func (*CreateContainersStep) step() {}
func (*CreateContainersStep) Name() string { return "create_containers" }

func (s *CreateContainersStep) Apply(ctx context.Context) error {
	seen := map[string]bool{}
	for _, spec := range s.specs {
		if seen[spec.Barcode] {
			continue
		}
		seen[spec.Barcode] = true

		existing, err := s.reg.Containers.FindContainer(ctx, spec.Barcode)
		if err != nil {
			return s.fail(ctx, fmt.Errorf("looking up container %s: %w", spec.Barcode, err))
		}
		if existing != nil {
			continue
		}
		shape := domain.Shape{NumOfRows: spec.NumOfRows, NumOfCols: spec.NumOfCols, RowIsAlpha: spec.RowIsAlpha, ColIsAlpha: spec.ColIsAlpha}
		c, err := s.reg.Containers.CreateContainer(ctx, &domain.Container{
			Barcode:    spec.Barcode,
			NumOfRows:  spec.NumOfRows,
			NumOfCols:  spec.NumOfCols,
			RowIsAlpha: spec.RowIsAlpha,
			ColIsAlpha: spec.ColIsAlpha,
			Slots:      shape.EmptySlots(),
		})
		if err != nil {
			return s.fail(ctx, fmt.Errorf("creating container %s: %w", spec.Barcode, err))
		}
		s.created = append(s.created, c)
	}
	return nil
}

func (s *CreateContainersStep) fail(ctx context.Context, err error) error {
	if rerr := s.Compensate(ctx); rerr != nil {
		return errors.Join(err, fmt.Errorf("reverting: %w", rerr))
	}
	return err
}

func (s *CreateContainersStep) Compensate(ctx context.Context) error {
	var errs []error
	for i := len(s.created) - 1; i >= 0; i-- {
		if err := s.reg.Containers.DestroyContainer(ctx, s.created[i].ID); err != nil {
			errs = append(errs, fmt.Errorf("destroying container %s: %w", s.created[i].Barcode, err))
		}
	}
	s.created = nil
	return errors.Join(errs...)
}

// CreateMaterialsStep creates the new materials in one batch and places
// each into its container. Every barcode is resolved before anything is
// created, so an unknown barcode fails the step with no side effects.
type CreateMaterialsStep struct {
	reg       Registries
	materials []NewMaterial
	state     *runState

	preImages map[string]*domain.Container
	written   []string
}

func (*CreateMaterialsStep) step() {}
func (*CreateMaterialsStep) Name() string { return "create_materials" }

func (s *CreateMaterialsStep) Apply(ctx context.Context) error {
	containers, order, err := resolveContainers(ctx, s.reg.Containers, newMaterialLocations(s.materials))
	if err != nil {
		return err
	}
	s.preImages = make(map[string]*domain.Container, len(containers))
	for bc, c := range containers {
		s.preImages[bc] = c.Clone()
	}

	attrs := make([]map[string]any, len(s.materials))
	for i, m := range s.materials {
		attrs[i] = withAvailability(m.Attributes)
	}
	created, err := s.reg.Materials.CreateMaterials(ctx, attrs)
	if err != nil {
		return fmt.Errorf("creating materials: %w", err)
	}
	s.state.created = created
	if len(created) != len(s.materials) {
		return s.fail(ctx, fmt.Errorf("material registry created %d materials, expected %d", len(created), len(s.materials)))
	}

	for i, m := range s.materials {
		if m.Container == nil {
			continue
		}
		if err := place(containers[m.Container.Barcode], m.Container.Address, created[i].ID); err != nil {
			return s.fail(ctx, err)
		}
	}
	for _, bc := range order {
		if err := s.reg.Containers.UpdateContainer(ctx, containers[bc]); err != nil {
			return s.fail(ctx, fmt.Errorf("updating container %s: %w", bc, err))
		}
		s.written = append(s.written, bc)
	}
	return nil
}

// withAvailability copies attrs, marking the material available for the
// next order's dispatch unless the lab set the flag itself.
func withAvailability(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	if _, ok := out[domain.AvailableAttr]; !ok {
		out[domain.AvailableAttr] = true
	}
	return out
}

func (s *CreateMaterialsStep) fail(ctx context.Context, err error) error {
	if rerr := s.Compensate(ctx); rerr != nil {
		return errors.Join(err, fmt.Errorf("reverting: %w", rerr))
	}
	return err
}

func (s *CreateMaterialsStep) Compensate(ctx context.Context) error {
	var errs []error
	for i := len(s.written) - 1; i >= 0; i-- {
		bc := s.written[i]
		if err := s.reg.Containers.UpdateContainer(ctx, s.preImages[bc]); err != nil {
			errs = append(errs, fmt.Errorf("restoring container %s: %w", bc, err))
		}
	}
	s.written = nil
	for i := len(s.state.created) - 1; i >= 0; i-- {
		id := s.state.created[i].ID
		if err := s.reg.Materials.DestroyMaterial(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("destroying material %s: %w", id, err))
		}
	}
	s.state.created = nil
	return errors.Join(errs...)
}

// RelocationStep applies attribute changes to the updated materials and
// moves those that name a new container into it.
type RelocationStep struct {
	reg     Registries
	updated []UpdatedMaterial

	priorAttrs map[string]map[string]any
	patched    []string
	preImages  map[string]*domain.Container
	written    []string
}

func (*RelocationStep) step() {}
func (*RelocationStep) Name() string { return "relocate_materials" }

func (s *RelocationStep) Apply(ctx context.Context) error {
	var locations []*Location
	ids := make([]string, 0, len(s.updated))
	for _, u := range s.updated {
		ids = append(ids, u.ID)
		if u.Container != nil {
			locations = append(locations, u.Container)
		}
	}
	containers, order, err := resolveContainers(ctx, s.reg.Containers, locations)
	if err != nil {
		return err
	}

	existing, err := s.reg.Materials.FindMaterials(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading updated materials: %w", err)
	}
	byID := make(map[string]*domain.Material, len(existing))
	for _, m := range existing {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if byID[id] == nil {
			return fmt.Errorf("material %s not found", id)
		}
	}

	s.priorAttrs = map[string]map[string]any{}
	s.preImages = make(map[string]*domain.Container, len(containers))
	for bc, c := range containers {
		s.preImages[bc] = c.Clone()
	}

	for _, u := range s.updated {
		if len(u.Attributes) == 0 {
			continue
		}
		prior := byID[u.ID]
		merged := prior.CloneAttributes()
		for k, v := range u.Attributes {
			merged[k] = v
		}
		if _, err := s.reg.Materials.UpdateMaterial(ctx, u.ID, merged); err != nil {
			return s.fail(ctx, fmt.Errorf("updating material %s: %w", u.ID, err))
		}
		s.priorAttrs[u.ID] = prior.CloneAttributes()
		s.patched = append(s.patched, u.ID)
	}

	for _, u := range s.updated {
		if u.Container == nil {
			continue
		}
		if err := place(containers[u.Container.Barcode], u.Container.Address, u.ID); err != nil {
			return s.fail(ctx, err)
		}
	}
	for _, bc := range order {
		if err := s.reg.Containers.UpdateContainer(ctx, containers[bc]); err != nil {
			return s.fail(ctx, fmt.Errorf("updating container %s: %w", bc, err))
		}
		s.written = append(s.written, bc)
	}
	return nil
}

func (s *RelocationStep) fail(ctx context.Context, err error) error {
	if rerr := s.Compensate(ctx); rerr != nil {
		return errors.Join(err, fmt.Errorf("reverting: %w", rerr))
	}
	return err
}

func (s *RelocationStep) Compensate(ctx context.Context) error {
	var errs []error
	for i := len(s.written) - 1; i >= 0; i-- {
		bc := s.written[i]
		if err := s.reg.Containers.UpdateContainer(ctx, s.preImages[bc]); err != nil {
			errs = append(errs, fmt.Errorf("restoring container %s: %w", bc, err))
		}
	}
	s.written = nil
	for i := len(s.patched) - 1; i >= 0; i-- {
		id := s.patched[i]
		if _, err := s.reg.Materials.UpdateMaterial(ctx, id, s.priorAttrs[id]); err != nil {
			errs = append(errs, fmt.Errorf("restoring material %s: %w", id, err))
		}
	}
	s.patched = nil
	return errors.Join(errs...)
}

// FinishedSetStep records the order's output as a locked set holding the
// updated and the newly created materials.
type FinishedSetStep struct {
	reg     Registries
	orderID string
	updated []string
	state   *runState
}

func (*FinishedSetStep) step() {}
func (*FinishedSetStep) Name() string { return "create_finished_set" }

func (s *FinishedSetStep) Apply(ctx context.Context) error {
	ids := append(append([]string{}, s.updated...), s.state.createdIDs()...)
	set, err := s.reg.Sets.CreateLockedSet(ctx, "Work order "+s.orderID+" output", ids)
	if err != nil {
		return fmt.Errorf("creating finished set: %w", err)
	}
	s.state.finishedSetID = &set.ID
	return nil
}

func (s *FinishedSetStep) Compensate(ctx context.Context) error {
	if s.state.finishedSetID == nil {
		return nil
	}
	if err := s.reg.Sets.DeleteSet(ctx, *s.state.finishedSetID); err != nil {
		return fmt.Errorf("deleting finished set %s: %w", *s.state.finishedSetID, err)
	}
	s.state.finishedSetID = nil
	return nil
}

// UpdateWorkOrderStep applies event to the order and stores the lab's
// comment. Compensate writes the captured status and comment back.
type UpdateWorkOrderStep struct {
	write   OrderWriter
	order   *domain.WorkOrder
	event   domain.OrderEvent
	comment *string
	state   *runState

	prior *domain.WorkOrder
}

func (*UpdateWorkOrderStep) step() {}

func (s *UpdateWorkOrderStep) Name() string { return "update_work_order" }

func (s *UpdateWorkOrderStep) Apply(ctx context.Context) error {
	prior := *s.order
	status, err := domain.Transition(prior.Status, s.event)
	if err != nil {
		return fmt.Errorf("work order %s: %w", s.order.ID, err)
	}
	next := prior
	next.Status = status
	if s.comment != nil {
		next.Comment = *s.comment
	}
	if s.state.finishedSetID != nil {
		next.FinishedSetID = s.state.finishedSetID
	}
	next.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, &next, prior.Status); err != nil {
		return fmt.Errorf("marking work order %s %s: %w", s.order.ID, status, err)
	}
	s.prior = &prior
	*s.order = next
	return nil
}

func (s *UpdateWorkOrderStep) Compensate(ctx context.Context) error {
	if s.prior == nil {
		return nil
	}
	restored := *s.prior
	restored.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, &restored, s.order.Status); err != nil {
		return fmt.Errorf("restoring work order %s: %w", s.order.ID, err)
	}
	*s.order = restored
	s.prior = nil
	return nil
}

func newMaterialLocations(materials []NewMaterial) []*Location {
	var out []*Location
	for _, m := range materials {
		if m.Container != nil {
			out = append(out, m.Container)
		}
	}
	return out
}

// resolveContainers loads every container a location names. It returns
// them by barcode and the barcodes in first-use order.
func resolveContainers(ctx context.Context, reg external.ContainerRegistry, locations []*Location) (map[string]*domain.Container, []string, error) {
	containers := map[string]*domain.Container{}
	var order []string
	for _, loc := range locations {
		if _, ok := containers[loc.Barcode]; ok {
			continue
		}
		c, err := reg.FindContainer(ctx, loc.Barcode)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up container %s: %w", loc.Barcode, err)
		}
		if c == nil {
			return nil, nil, fmt.Errorf("container %s: %w", loc.Barcode, domain.ErrNotFound)
		}
		if c.Slotted() && len(c.Slots) == 0 {
			c.Slots = c.Shape().EmptySlots()
		}
		containers[loc.Barcode] = c
		order = append(order, loc.Barcode)
	}
	return containers, order, nil
}

// place puts materialID into c. A 1x1 container takes it as sole occupant.
// A slotted container takes it at address, or at the first free slot when
// address is nil. A numeric address is a 0-based row-major slot index.
func place(c *domain.Container, address *string, materialID string) error {
	id := materialID
	if !c.Slotted() {
		if c.MaterialID != nil && *c.MaterialID != id {
			return fmt.Errorf("container %s already holds material %s", c.Barcode, *c.MaterialID)
		}
		c.MaterialID = &id
		return nil
	}

	var idx int
	if address == nil {
		addr, err := c.FreeSlot()
		if err != nil {
			return err
		}
		idx = c.SlotIndex(addr)
	} else {
		idx = c.SlotIndex(*address)
		if idx < 0 {
			return fmt.Errorf("container %s has no slot %s", c.Barcode, *address)
		}
		if cur := c.Slots[idx].MaterialID; cur != nil && *cur != id {
			return fmt.Errorf("slot %s of container %s is already occupied", c.Slots[idx].Address, c.Barcode)
		}
	}
	c.Slots[idx].MaterialID = &id
	return nil
}
