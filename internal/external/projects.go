package external

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/alexanderramin/workorders/internal/domain"
)

// HTTPProjectDirectory looks projects up in the study directory.
type HTTPProjectDirectory struct {
	c *jsonClient
}

func NewHTTPProjectDirectory(cfg ClientConfig, observer Observer) *HTTPProjectDirectory {
	return &HTTPProjectDirectory{c: newJSONClient("projects", cfg, observer)}
}

func (d *HTTPProjectDirectory) FindProject(ctx context.Context, id int64) (*domain.Project, error) {
	var resp struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		CostCode string `json:"cost_code"`
	}
	err := d.c.do(ctx, "find", http.MethodGet, "/nodes/"+strconv.FormatInt(id, 10), nil, &resp)
	if errors.Is(err, ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Project{ID: resp.ID, Name: resp.Name, CostCode: resp.CostCode}, nil
}
