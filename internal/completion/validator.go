package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/external"
)

// Rule names one consistency check of a completion message.
type Rule string

const (
	RuleOrderState       Rule = "order_state"
	RuleSchema           Rule = "schema"
	RuleOrderMaterials   Rule = "order_materials"
	RuleRepeatedMaterial Rule = "repeated_material"
	RuleUniqueBarcode    Rule = "unique_barcode"
	RuleContainerShape   Rule = "container_shape"
	RuleLocation         Rule = "location"
	RuleUnknownLocation  Rule = "unknown_location"
	RuleUnusedContainer  Rule = "unused_container"
)

// Problem is one failed check.
type Problem struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"msg"`
}

// Result is the outcome of a validation run. It is a value, not an error:
// a failed Result carries every problem found.
type Result struct {
	SchemaVersion string    `json:"schema_version,omitempty"`
	Problems      []Problem `json:"errors"`
}

func (r *Result) OK() bool { return len(r.Problems) == 0 }

func (r *Result) add(rule Rule, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Failed reports whether rule produced a problem.
func (r *Result) Failed(rule Rule) bool {
	for _, p := range r.Problems {
		if p.Rule == rule {
			return true
		}
	}
	return false
}

// Summary joins all problem messages.
func (r *Result) Summary() string {
	msgs := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, "; ")
}

// Validator checks a message for structure and for consistency with the
// order and the container registry. It only reads.
type Validator struct {
	containers external.ContainerRegistry
	sets       external.SetService
}

func NewValidator(containers external.ContainerRegistry, sets external.SetService) *Validator {
	return &Validator{containers: containers, sets: sets}
}

// Validate runs every check and accumulates the failures. order is the
// order the message names, or nil when no such order exists.
func (v *Validator) Validate(ctx context.Context, order *domain.WorkOrder, msg *Message, schemas *SchemaSet) *Result {
	res := &Result{}
	if schemas != nil {
		res.SchemaVersion = schemas.Version
	}

	v.checkOrder(order, msg, res)

	if schemas != nil {
		for _, line := range schemas.Check(msg.Document()) {
			res.add(RuleSchema, "message does not match the registry schema at %s", line)
		}
	}
	if msg.decodeErr != nil {
		if !res.Failed(RuleSchema) {
			res.add(RuleSchema, "message is malformed: %v", msg.decodeErr)
		}
		return res
	}

	wo := msg.WorkOrder
	if order != nil && order.ID == string(wo.WorkOrderID) {
		v.checkOrderMaterials(ctx, order, msg, res)
	}
	checkRepeatedMaterials(wo.UpdatedMaterials, res)
	unique := checkUniqueBarcodes(wo.Containers, res)
	v.checkContainerShapes(ctx, unique, res)
	checkLocations(wo.NewMaterials, unique, res)
	checkLocationsDeclared(wo.NewMaterials, unique, res)
	return res
}

func (v *Validator) checkOrder(order *domain.WorkOrder, msg *Message, res *Result) {
	id := string(msg.WorkOrder.WorkOrderID)
	if order == nil || order.ID != id {
		res.add(RuleOrderState, "work order %s does not exist", id)
		return
	}
	if order.Status != domain.OrderActive {
		res.add(RuleOrderState, "work order %s must be active (currently %s)", id, order.Status)
	}
}

func (v *Validator) checkOrderMaterials(ctx context.Context, order *domain.WorkOrder, msg *Message, res *Result) {
	var expected []string
	if order.SetID != nil {
		set, err := v.sets.FindSet(ctx, *order.SetID)
		if err != nil {
			res.add(RuleOrderMaterials, "could not load the materials of work order %s: %v", order.ID, err)
			return
		}
		if set != nil {
			expected = set.MaterialIDs
		}
	}
	if !sameMembers(expected, msg.UpdatedIDs()) {
		res.add(RuleOrderMaterials, "updated materials do not match the materials of work order %s", order.ID)
	}
}

func sameMembers(a, b []string) bool {
	as, bs := map[string]bool{}, map[string]bool{}
	for _, x := range a {
		as[x] = true
	}
	for _, x := range b {
		bs[x] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for x := range as {
		if !bs[x] {
			return false
		}
	}
	return true
}

func checkRepeatedMaterials(updated []UpdatedMaterial, res *Result) {
	seen := map[string]int{}
	for _, u := range updated {
		seen[u.ID]++
	}
	for _, id := range sortedKeys(seen) {
		if seen[id] > 1 {
			res.add(RuleRepeatedMaterial, "material %s is repeated in updated_materials", id)
		}
	}
}

// checkUniqueBarcodes reports repeated barcodes and returns the first
// declaration of each barcode.
func checkUniqueBarcodes(containers []ContainerSpec, res *Result) map[string]ContainerSpec {
	unique := map[string]ContainerSpec{}
	count := map[string]int{}
	for _, c := range containers {
		count[c.Barcode]++
		if _, ok := unique[c.Barcode]; !ok {
			unique[c.Barcode] = c
		}
	}
	for _, bc := range sortedKeys(count) {
		if count[bc] > 1 {
			res.add(RuleUniqueBarcode, "container barcode %s must be unique in containers", bc)
		}
	}
	return unique
}

func (v *Validator) checkContainerShapes(ctx context.Context, declared map[string]ContainerSpec, res *Result) {
	for _, bc := range sortedKeys(declared) {
		spec := declared[bc]
		existing, err := v.containers.FindContainer(ctx, bc)
		if err != nil {
			res.add(RuleContainerShape, "could not look up container %s: %v", bc, err)
			continue
		}
		if existing == nil {
			continue
		}
		want := domain.Shape{NumOfRows: spec.NumOfRows, NumOfCols: spec.NumOfCols, RowIsAlpha: spec.RowIsAlpha, ColIsAlpha: spec.ColIsAlpha}
		if got := existing.Shape(); got != want {
			res.add(RuleContainerShape, "container %s is different from the registry: declared %s, registered %s", bc, describeShape(want), describeShape(got))
		}
	}
}

func describeShape(s domain.Shape) string {
	return fmt.Sprintf("%dx%d (row_is_alpha=%t, col_is_alpha=%t)", s.NumOfRows, s.NumOfCols, s.RowIsAlpha, s.ColIsAlpha)
}

// checkLocations rejects two new materials at the same place: a repeated
// explicit address, a repeated bare barcode, or one barcode used both with
// and without an address.
func checkLocations(materials []NewMaterial, declared map[string]ContainerSpec, res *Result) {
	type usage struct {
		bare      int
		addresses map[string]int
	}
	byBarcode := map[string]*usage{}
	for _, m := range materials {
		if m.Container == nil {
			continue
		}
		u := byBarcode[m.Container.Barcode]
		if u == nil {
			u = &usage{addresses: map[string]int{}}
			byBarcode[m.Container.Barcode] = u
		}
		if m.Container.Address == nil {
			u.bare++
		} else {
			u.addresses[canonicalAddress(*m.Container.Address, declared[m.Container.Barcode])]++
		}
	}

	for _, bc := range sortedKeys(byBarcode) {
		u := byBarcode[bc]
		if u.bare > 1 {
			res.add(RuleLocation, "%d new materials share the location %s", u.bare, bc)
		}
		if u.bare > 0 && len(u.addresses) > 0 {
			res.add(RuleLocation, "new materials use container %s both with and without an address; locations must be one or the other", bc)
		}
		for _, addr := range sortedKeys(u.addresses) {
			if u.addresses[addr] > 1 {
				res.add(RuleLocation, "%d new materials share the location %s %s", u.addresses[addr], bc, addr)
			}
		}
	}
}

// canonicalAddress maps a label or bare index to the slot label of the
// declared shape, so "A:1" and 0 name the same slot. Addresses the shape
// cannot resolve compare as typed.
func canonicalAddress(address string, spec ContainerSpec) string {
	shape := domain.Shape{NumOfRows: spec.NumOfRows, NumOfCols: spec.NumOfCols, RowIsAlpha: spec.RowIsAlpha, ColIsAlpha: spec.ColIsAlpha}
	if i := shape.SlotIndex(address); i >= 0 {
		return shape.Addresses()[i]
	}
	return strings.ToUpper(address)
}

// checkLocationsDeclared enforces a one-to-one match between the barcodes
// new materials use and the declared containers.
func checkLocationsDeclared(materials []NewMaterial, declared map[string]ContainerSpec, res *Result) {
	used := map[string]bool{}
	for _, m := range materials {
		if m.Container != nil {
			used[m.Container.Barcode] = true
		}
	}
	for _, bc := range sortedKeys(used) {
		if _, ok := declared[bc]; !ok {
			res.add(RuleUnknownLocation, "new material locations use barcode %s, which is not listed in containers", bc)
		}
	}
	for _, bc := range sortedKeys(declared) {
		if !used[bc] {
			res.add(RuleUnusedContainer, "containers lists barcode %s, but no new material locations use it", bc)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
