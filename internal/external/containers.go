package external

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/alexanderramin/workorders/internal/domain"
)

type slotDoc struct {
	Address  string  `json:"address"`
	Material *string `json:"material"`
}

type containerDoc struct {
	ID         string    `json:"_id,omitempty"`
	Barcode    string    `json:"barcode"`
	NumOfRows  int       `json:"num_of_rows"`
	NumOfCols  int       `json:"num_of_cols"`
	RowIsAlpha bool      `json:"row_is_alpha"`
	ColIsAlpha bool      `json:"col_is_alpha"`
	Material   *string   `json:"material,omitempty"`
	Slots      []slotDoc `json:"slots,omitempty"`
}

func toContainerDoc(c *domain.Container) containerDoc {
	d := containerDoc{
		ID: c.ID, Barcode: c.Barcode,
		NumOfRows: c.NumOfRows, NumOfCols: c.NumOfCols,
		RowIsAlpha: c.RowIsAlpha, ColIsAlpha: c.ColIsAlpha,
		Material: c.MaterialID,
	}
	for _, s := range c.Slots {
		d.Slots = append(d.Slots, slotDoc{Address: s.Address, Material: s.MaterialID})
	}
	return d
}

func (d containerDoc) toContainer() *domain.Container {
	c := &domain.Container{
		ID: d.ID, Barcode: d.Barcode,
		NumOfRows: d.NumOfRows, NumOfCols: d.NumOfCols,
		RowIsAlpha: d.RowIsAlpha, ColIsAlpha: d.ColIsAlpha,
		MaterialID: d.Material,
	}
	for _, s := range d.Slots {
		c.Slots = append(c.Slots, domain.Slot{Address: s.Address, MaterialID: s.Material})
	}
	return c
}

// HTTPContainerRegistry talks to the container registry over HTTP.
type HTTPContainerRegistry struct {
	c *jsonClient
}

func NewHTTPContainerRegistry(cfg ClientConfig, observer Observer) *HTTPContainerRegistry {
	return &HTTPContainerRegistry{c: newJSONClient("containers", cfg, observer)}
}

func (r *HTTPContainerRegistry) FindContainer(ctx context.Context, barcode string) (*domain.Container, error) {
	var resp struct {
		Containers []containerDoc `json:"containers"`
	}
	err := r.c.do(ctx, "find", http.MethodGet, "/containers?barcode="+url.QueryEscape(barcode), nil, &resp)
	if errors.Is(err, ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Containers) == 0 {
		return nil, nil
	}
	return resp.Containers[0].toContainer(), nil
}

func (r *HTTPContainerRegistry) CreateContainer(ctx context.Context, c *domain.Container) (*domain.Container, error) {
	var resp containerDoc
	if err := r.c.do(ctx, "create", http.MethodPost, "/containers", toContainerDoc(c), &resp); err != nil {
		return nil, err
	}
	return resp.toContainer(), nil
}

func (r *HTTPContainerRegistry) UpdateContainer(ctx context.Context, c *domain.Container) error {
	return r.c.do(ctx, "update", http.MethodPut, "/containers/"+url.PathEscape(c.ID), toContainerDoc(c), nil)
}

func (r *HTTPContainerRegistry) DestroyContainer(ctx context.Context, id string) error {
	return r.c.do(ctx, "destroy", http.MethodDelete, "/containers/"+url.PathEscape(id), nil, nil)
}
