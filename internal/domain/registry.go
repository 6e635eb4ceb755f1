package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AvailableAttr is the registry attribute that gates dispatch.
const AvailableAttr = "available"

// Material is a record held by the external material registry. Attributes
// is the registry's free-form bag; "available" gates dispatch.
type Material struct {
	ID         string
	Attributes map[string]any
}

// Available reports the registry's availability flag.
func (m *Material) Available() bool {
	v, ok := m.Attributes[AvailableAttr].(bool)
	return ok && v
}

// CloneAttributes returns a shallow copy of the attribute bag.
func (m *Material) CloneAttributes() map[string]any {
	out := make(map[string]any, len(m.Attributes))
	for k, v := range m.Attributes {
		out[k] = v
	}
	return out
}

// Slot is one addressable position of a slotted container.
type Slot struct {
	Address    string
	MaterialID *string
}

// Container is a registry container. A 1x1 container holds a sole occupant
// in MaterialID; larger ones hold materials in Slots.
type Container struct {
	ID         string
	Barcode    string
	NumOfRows  int
	NumOfCols  int
	RowIsAlpha bool
	ColIsAlpha bool
	MaterialID *string
	Slots      []Slot
}

// Shape is the comparable geometry of a container.
type Shape struct {
	NumOfRows  int
	NumOfCols  int
	RowIsAlpha bool
	ColIsAlpha bool
}

func (c *Container) Shape() Shape {
	return Shape{NumOfRows: c.NumOfRows, NumOfCols: c.NumOfCols, RowIsAlpha: c.RowIsAlpha, ColIsAlpha: c.ColIsAlpha}
}

// Slotted reports whether materials go in addressed slots.
func (c *Container) Slotted() bool {
	return c.NumOfRows*c.NumOfCols > 1
}

// AxisLabel renders a 1-based index as a letter or number.
func AxisLabel(i int, alpha bool) string {
	if !alpha {
		return strconv.Itoa(i)
	}
	var b []byte
	for i > 0 {
		i--
		b = append([]byte{byte('A' + i%26)}, b...)
		i /= 26
	}
	return string(b)
}

// Addresses lists slot addresses in row-major order as "ROW:COL".
func (s Shape) Addresses() []string {
	out := make([]string, 0, s.NumOfRows*s.NumOfCols)
	for r := 1; r <= s.NumOfRows; r++ {
		for c := 1; c <= s.NumOfCols; c++ {
			out = append(out, AxisLabel(r, s.RowIsAlpha)+":"+AxisLabel(c, s.ColIsAlpha))
		}
	}
	return out
}

// EmptySlots builds the slot list for a freshly created container.
func (s Shape) EmptySlots() []Slot {
	if s.NumOfRows*s.NumOfCols <= 1 {
		return nil
	}
	addrs := s.Addresses()
	slots := make([]Slot, len(addrs))
	for i, a := range addrs {
		slots[i] = Slot{Address: a}
	}
	return slots
}

// SlotIndex resolves an address to its row-major slot index, or -1. It
// accepts a "ROW:COL" label, matched case-insensitively, or a bare 0-based
// index.
func (s Shape) SlotIndex(address string) int {
	for i, a := range s.Addresses() {
		if strings.EqualFold(a, address) {
			return i
		}
	}
	return bareIndex(address, s.NumOfRows*s.NumOfCols)
}

// SlotIndex resolves address against the container's slots, or -1.
func (c *Container) SlotIndex(address string) int {
	for i, s := range c.Slots {
		if strings.EqualFold(s.Address, address) {
			return i
		}
	}
	return bareIndex(address, len(c.Slots))
}

func bareIndex(address string, n int) int {
	i, err := strconv.Atoi(strings.TrimSpace(address))
	if err != nil || i < 0 || i >= n {
		return -1
	}
	return i
}

// FreeSlot returns the first empty address in row-major order.
func (c *Container) FreeSlot() (string, error) {
	for _, s := range c.Slots {
		if s.MaterialID == nil {
			return s.Address, nil
		}
	}
	return "", fmt.Errorf("container %s has no free slot", c.Barcode)
}

// MaterialIDs lists every material held by the container.
func (c *Container) MaterialIDs() []string {
	var ids []string
	if c.MaterialID != nil {
		ids = append(ids, *c.MaterialID)
	}
	for _, s := range c.Slots {
		if s.MaterialID != nil {
			ids = append(ids, *s.MaterialID)
		}
	}
	return ids
}

// Clone deep-copies the container so a pre-image survives later mutation.
func (c *Container) Clone() *Container {
	out := *c
	if c.MaterialID != nil {
		id := *c.MaterialID
		out.MaterialID = &id
	}
	out.Slots = make([]Slot, len(c.Slots))
	for i, s := range c.Slots {
		out.Slots[i] = Slot{Address: s.Address}
		if s.MaterialID != nil {
			id := *s.MaterialID
			out.Slots[i].MaterialID = &id
		}
	}
	return &out
}

// MaterialSet is a set-service set.
type MaterialSet struct {
	ID          string
	Name        string
	Locked      bool
	MaterialIDs []string
}

// Project is a project-directory node.
type Project struct {
	ID       int64
	Name     string
	CostCode string
}
