package external

import (
	"context"
	"net/http"
)

// HTTPDispatchSink posts dispatched orders to the downstream lab system.
type HTTPDispatchSink struct {
	c *jsonClient
}

func NewHTTPDispatchSink(cfg ClientConfig, observer Observer) *HTTPDispatchSink {
	return &HTTPDispatchSink{c: newJSONClient("lims", cfg, observer)}
}

func (s *HTTPDispatchSink) Send(ctx context.Context, req DispatchRequest) error {
	return s.c.do(ctx, "send", http.MethodPost, "/work_orders", req, nil)
}
