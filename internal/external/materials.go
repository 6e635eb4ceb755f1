package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexanderramin/workorders/internal/domain"
)

// materialDoc is the registry's wire form: the attribute bag plus "_id".
type materialDoc map[string]any

func (d materialDoc) toMaterial() (*domain.Material, error) {
	id, ok := d["_id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("material record without _id")
	}
	attrs := make(map[string]any, len(d))
	for k, v := range d {
		if k != "_id" {
			attrs[k] = v
		}
	}
	return &domain.Material{ID: id, Attributes: attrs}, nil
}

type materialList struct {
	Materials []materialDoc `json:"materials"`
}

func (l materialList) toMaterials() ([]*domain.Material, error) {
	out := make([]*domain.Material, 0, len(l.Materials))
	for _, d := range l.Materials {
		m, err := d.toMaterial()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// HTTPMaterialRegistry talks to the material registry over HTTP. It also
// serves the registry's published schemas.
type HTTPMaterialRegistry struct {
	c *jsonClient
}

func NewHTTPMaterialRegistry(cfg ClientConfig, observer Observer) *HTTPMaterialRegistry {
	return &HTTPMaterialRegistry{c: newJSONClient("materials", cfg, observer)}
}

func (r *HTTPMaterialRegistry) CreateMaterials(ctx context.Context, attrs []map[string]any) ([]*domain.Material, error) {
	body := struct {
		Materials []map[string]any `json:"materials"`
	}{Materials: attrs}
	var resp materialList
	if err := r.c.do(ctx, "create", http.MethodPost, "/materials", body, &resp); err != nil {
		return nil, err
	}
	created, err := resp.toMaterials()
	if err != nil {
		return nil, err
	}
	if len(created) != len(attrs) {
		return nil, fmt.Errorf("material registry created %d of %d materials", len(created), len(attrs))
	}
	return created, nil
}

func (r *HTTPMaterialRegistry) FindMaterials(ctx context.Context, ids []string) ([]*domain.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resp materialList
	path := "/materials?ids=" + url.QueryEscape(strings.Join(ids, ","))
	if err := r.c.do(ctx, "find", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toMaterials()
}

func (r *HTTPMaterialRegistry) UpdateMaterial(ctx context.Context, id string, attrs map[string]any) (*domain.Material, error) {
	var resp materialDoc
	if err := r.c.do(ctx, "update", http.MethodPut, "/materials/"+url.PathEscape(id), attrs, &resp); err != nil {
		return nil, err
	}
	return resp.toMaterial()
}

func (r *HTTPMaterialRegistry) DestroyMaterial(ctx context.Context, id string) error {
	return r.c.do(ctx, "destroy", http.MethodDelete, "/materials/"+url.PathEscape(id), nil, nil)
}

func (r *HTTPMaterialRegistry) Schema(ctx context.Context, name SchemaName) ([]byte, error) {
	var raw []byte
	if err := r.c.do(ctx, "schema", http.MethodGet, "/"+string(name), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
