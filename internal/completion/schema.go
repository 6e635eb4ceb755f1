package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexanderramin/workorders/internal/external"
	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaSet is one fetched version of the registry schemas together with
// the message schema derived from them. It is immutable once built.
type SchemaSet struct {
	Version   string
	FetchedAt time.Time
	message   *openapi3.Schema
}

// BuildSchemaSet derives the message schema from the registry's material,
// container and material-patch schemas.
func BuildSchemaSet(material, container, patch []byte) (*SchemaSet, error) {
	matSchema, err := convertRegistrySchema(material)
	if err != nil {
		return nil, fmt.Errorf("material schema: %w", err)
	}
	contSchema, err := convertRegistrySchema(container)
	if err != nil {
		return nil, fmt.Errorf("container schema: %w", err)
	}
	patchSchema, err := convertRegistrySchema(patch)
	if err != nil {
		return nil, fmt.Errorf("material patch schema: %w", err)
	}

	location := openapi3.NewObjectSchema().
		WithProperty("barcode", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("address", &openapi3.Schema{})
	location.Required = []string{"barcode"}

	// Updates are partial, so the patch schema contributes properties but
	// no requirements.
	updated := openapi3.NewObjectSchema()
	for name, prop := range patchSchema.Properties {
		updated.WithProperty(name, prop.Value)
	}
	updated.WithProperty("_id", openapi3.NewStringSchema().WithMinLength(1))
	updated.WithProperty("container", location)
	updated.Required = []string{"_id"}

	newMaterial := openapi3.NewObjectSchema()
	for name, prop := range matSchema.Properties {
		newMaterial.WithProperty(name, prop.Value)
	}
	newMaterial.WithProperty("container", location)
	newMaterial.Required = append([]string(nil), matSchema.Required...)

	containerItem := openapi3.NewObjectSchema()
	for name, prop := range contSchema.Properties {
		containerItem.WithProperty(name, prop.Value)
	}
	containerItem.WithProperty("barcode", openapi3.NewStringSchema().WithMinLength(1))
	containerItem.Required = withRequired(contSchema.Required, "barcode")

	order := openapi3.NewObjectSchema().
		WithProperty("work_order_id", &openapi3.Schema{}).
		WithProperty("comment", openapi3.NewStringSchema()).
		WithProperty("updated_materials", openapi3.NewArraySchema().WithItems(updated)).
		WithProperty("new_materials", openapi3.NewArraySchema().WithItems(newMaterial)).
		WithProperty("containers", openapi3.NewArraySchema().WithItems(containerItem))
	order.Required = []string{"work_order_id"}
	order.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}

	message := openapi3.NewObjectSchema().WithProperty("work_order", order)
	message.Required = []string{"work_order"}
	message.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}

	sum := sha256.New()
	for _, part := range [][]byte{material, container, patch} {
		sum.Write(part)
		sum.Write([]byte{0})
	}
	return &SchemaSet{
		Version:   hex.EncodeToString(sum.Sum(nil))[:12],
		FetchedAt: time.Now().UTC(),
		message:   message,
	}, nil
}

func withRequired(req []string, extra string) []string {
	out := append([]string(nil), req...)
	for _, r := range out {
		if r == extra {
			return out
		}
	}
	return append(out, extra)
}

// Check validates a decoded message document and returns one line per
// violation.
func (s *SchemaSet) Check(doc any) []string {
	err := s.message.VisitJSON(doc, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	var out []string
	flattenSchemaErrors(err, &out)
	return out
}

func flattenSchemaErrors(err error, out *[]string) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi {
			flattenSchemaErrors(e, out)
		}
		return
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		path := "/" + strings.Join(se.JSONPointer(), "/")
		*out = append(*out, fmt.Sprintf("%s: %s", path, se.Reason))
		return
	}
	*out = append(*out, err.Error())
}

// SchemaCache fetches the registry schemas at most once per ttl. A
// validation run takes one SchemaSet and uses it throughout.
type SchemaCache struct {
	source external.SchemaSource
	ttl    time.Duration
	now    func() time.Time

	mu  sync.Mutex
	cur *SchemaSet
}

// NewSchemaCache caches schemas from source. ttl <= 0 keeps a fetched set
// until Invalidate is called.
func NewSchemaCache(source external.SchemaSource, ttl time.Duration) *SchemaCache {
	return &SchemaCache{source: source, ttl: ttl, now: time.Now}
}

// Get returns the cached set, fetching it if missing or expired.
func (c *SchemaCache) Get(ctx context.Context) (*SchemaSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil && (c.ttl <= 0 || c.now().Sub(c.cur.FetchedAt) < c.ttl) {
		return c.cur, nil
	}

	var docs [3][]byte
	for i, name := range []external.SchemaName{external.MaterialSchema, external.ContainerSchema, external.MaterialPatchSchema} {
		raw, err := c.source.Schema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", name, err)
		}
		docs[i] = raw
	}
	set, err := BuildSchemaSet(docs[0], docs[1], docs[2])
	if err != nil {
		return nil, err
	}
	set.FetchedAt = c.now().UTC()
	c.cur = set
	return set, nil
}

// Invalidate drops the cached set so the next Get refetches.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}
