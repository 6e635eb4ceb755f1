// Package completion validates inbound completion and cancellation messages
// and applies them to the external registries as a compensable run of steps.
package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is an inbound "work order finished" (or cancelled) message.
type Message struct {
	WorkOrder OrderSection `json:"work_order"`

	doc       any
	decodeErr error
}

type OrderSection struct {
	WorkOrderID      FlexibleID        `json:"work_order_id"`
	Comment          *string           `json:"comment"`
	UpdatedMaterials []UpdatedMaterial `json:"updated_materials"`
	NewMaterials     []NewMaterial     `json:"new_materials"`
	Containers       []ContainerSpec   `json:"containers"`
}

// FlexibleID accepts an id sent either as a JSON string or number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("work_order_id must be a string or number")
	}
	*f = FlexibleID(n.String())
	return nil
}

// UpdatedMaterial is an existing material the lab reports on, with the
// attribute changes it made and, optionally, the container it now sits in.
type UpdatedMaterial struct {
	ID         string
	Attributes map[string]any
	Container  *Location
}

func (u *UpdatedMaterial) UnmarshalJSON(data []byte) error {
	var bag map[string]any
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	id, _ := bag["_id"].(string)
	delete(bag, "_id")
	loc, err := extractLocation(bag)
	if err != nil {
		return err
	}
	u.ID = id
	u.Attributes = bag
	u.Container = loc
	return nil
}

// Location places a new material in a container, at an address when the
// container is slotted.
type Location struct {
	Barcode string  `json:"barcode"`
	Address *string `json:"address,omitempty"`
}

// Key is the (barcode, address) pair used to detect collisions.
func (l Location) Key() string {
	if l.Address == nil {
		return l.Barcode
	}
	return l.Barcode + "@" + *l.Address
}

// NewMaterial is a material the lab produced. Attributes exclude the
// container location.
type NewMaterial struct {
	Attributes map[string]any
	Container  *Location
}

func (n *NewMaterial) UnmarshalJSON(data []byte) error {
	var bag map[string]any
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	loc, err := extractLocation(bag)
	if err != nil {
		return err
	}
	n.Attributes = bag
	n.Container = loc
	return nil
}

// extractLocation removes "container" from bag and decodes it.
func extractLocation(bag map[string]any) (*Location, error) {
	raw, ok := bag["container"]
	if !ok {
		return nil, nil
	}
	delete(bag, "container")
	if raw == nil {
		return nil, nil
	}
	enc, _ := json.Marshal(raw)
	var loc struct {
		Barcode string          `json:"barcode"`
		Address json.RawMessage `json:"address"`
	}
	if err := json.Unmarshal(enc, &loc); err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	out := &Location{Barcode: loc.Barcode}
	if addr, ok := addressString(loc.Address); ok {
		out.Address = &addr
	}
	return out, nil
}

// addressString accepts "A:1" or a bare slot index sent as a number.
func addressString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// ContainerSpec declares a container the new materials go into.
type ContainerSpec struct {
	Barcode    string `json:"barcode"`
	NumOfRows  int    `json:"num_of_rows"`
	NumOfCols  int    `json:"num_of_cols"`
	RowIsAlpha bool   `json:"row_is_alpha"`
	ColIsAlpha bool   `json:"col_is_alpha"`
}

// DecodeMessage parses data. It fails only when data is not a JSON object;
// a document that does not fit the typed form is kept and reported by the
// validator.
func DecodeMessage(data []byte) (*Message, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("decoding message: expected a JSON object")
	}

	m := &Message{doc: doc}
	if err := json.Unmarshal(data, m); err != nil {
		m.decodeErr = err
	}
	return m, nil
}

// Document returns the generic decoded form used for schema validation.
func (m *Message) Document() any {
	return m.doc
}

// UpdatedIDs lists updated material ids in message order.
func (m *Message) UpdatedIDs() []string {
	ids := make([]string, 0, len(m.WorkOrder.UpdatedMaterials))
	for _, u := range m.WorkOrder.UpdatedMaterials {
		ids = append(ids, u.ID)
	}
	return ids
}
