package external

import (
	"context"
	"net/http"
	"net/url"
)

// HTTPBilling talks to the billing facade over HTTP.
type HTTPBilling struct {
	c *jsonClient
}

func NewHTTPBilling(cfg ClientConfig, observer Observer) *HTTPBilling {
	return &HTTPBilling{c: newJSONClient("billing", cfg, observer)}
}

func (b *HTTPBilling) ValidateCostCode(ctx context.Context, costCode string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := b.c.do(ctx, "validate_cost_code", http.MethodGet, "/cost_codes/"+url.PathEscape(costCode)+"/validate", nil, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (b *HTTPBilling) ModuleCost(ctx context.Context, moduleName, costCode string) (*float64, error) {
	var resp struct {
		Cost *float64 `json:"cost"`
	}
	q := url.Values{"module": {moduleName}, "cost_code": {costCode}}
	if err := b.c.do(ctx, "module_cost", http.MethodGet, "/module_costs?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cost, nil
}
