package external

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/alexanderramin/workorders/internal/domain"
)

type setDoc struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Locked    bool     `json:"locked"`
	Materials []string `json:"materials"`
}

func (d setDoc) toSet() *domain.MaterialSet {
	return &domain.MaterialSet{ID: d.ID, Name: d.Name, Locked: d.Locked, MaterialIDs: d.Materials}
}

// HTTPSetService talks to the set service over HTTP.
type HTTPSetService struct {
	c *jsonClient
}

func NewHTTPSetService(cfg ClientConfig, observer Observer) *HTTPSetService {
	return &HTTPSetService{c: newJSONClient("sets", cfg, observer)}
}

func (s *HTTPSetService) FindSet(ctx context.Context, id string) (*domain.MaterialSet, error) {
	var resp setDoc
	err := s.c.do(ctx, "find", http.MethodGet, "/sets/"+url.PathEscape(id)+"?include=materials", nil, &resp)
	if errors.Is(err, ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.toSet(), nil
}

func (s *HTTPSetService) LockedClone(ctx context.Context, id string) (*domain.MaterialSet, error) {
	var resp setDoc
	if err := s.c.do(ctx, "clone", http.MethodPost, "/sets/"+url.PathEscape(id)+"/clone", map[string]bool{"locked": true}, &resp); err != nil {
		return nil, err
	}
	return resp.toSet(), nil
}

func (s *HTTPSetService) CreateLockedSet(ctx context.Context, name string, materialIDs []string) (*domain.MaterialSet, error) {
	var resp setDoc
	body := setDoc{Name: name, Locked: true, Materials: materialIDs}
	if err := s.c.do(ctx, "create", http.MethodPost, "/sets", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSet(), nil
}

func (s *HTTPSetService) DeleteSet(ctx context.Context, id string) error {
	return s.c.do(ctx, "delete", http.MethodDelete, "/sets/"+url.PathEscape(id), nil, nil)
}
