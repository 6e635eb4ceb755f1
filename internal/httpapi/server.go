// Package httpapi serves the work plan and work order operations over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBody caps request bodies; lab messages with many materials stay well
// under it.
const maxBody = 8 << 20

type Server struct {
	plans       service.PlanService
	completions service.CompletionService
	catalogue   service.CatalogueService
	logger      *slog.Logger
}

// NewHandler builds the router. metrics may be nil.
func NewHandler(plans service.PlanService, completions service.CompletionService, catalogue service.CatalogueService, logger *slog.Logger, metrics http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{plans: plans, completions: completions, catalogue: catalogue, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/{productID}", s.getProduct)
	})
	r.Route("/plans", func(r chi.Router) {
		r.Post("/", s.createPlan)
		r.Get("/", s.listPlans)
		r.Route("/{planID}", func(r chi.Router) {
			r.Get("/", s.getPlan)
			r.Delete("/", s.deletePlan)
			r.Put("/set", s.selectSet)
			r.Put("/project", s.selectProject)
			r.Put("/product", s.configureProduct)
		})
	})
	r.Route("/orders", func(r chi.Router) {
		r.Post("/complete", s.complete)
		r.Post("/cancel", s.cancel)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Put("/modules", s.reconfigureOrder)
			r.Post("/dispatch", s.dispatchOrder)
			r.Post("/withdraw", s.withdrawOrder)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalogue.ListProducts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]*productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, toProductJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalogue.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductJSON(p))
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.plans.Create(r.Context(), req.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanJSON(view))
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	views, err := s.plans.List(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]*planJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toPlanJSON(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	view, err := s.plans.Get(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanJSON(view))
}

func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.plans.Delete(r.Context(), chi.URLParam(r, "planID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectSet(w http.ResponseWriter, r *http.Request) {
	var req selectSetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPlan(w, r, func() (*domain.PlanView, error) {
		return s.plans.SelectSet(r.Context(), service.SelectSetInput{PlanID: chi.URLParam(r, "planID"), SetID: req.SetID})
	})
}

func (s *Server) selectProject(w http.ResponseWriter, r *http.Request) {
	var req selectProjectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPlan(w, r, func() (*domain.PlanView, error) {
		return s.plans.SelectProject(r.Context(), service.SelectProjectInput{PlanID: chi.URLParam(r, "planID"), ProjectID: req.ProjectID})
	})
}

func (s *Server) configureProduct(w http.ResponseWriter, r *http.Request) {
	var req configureProductRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := service.ConfigureProductInput{
		PlanID:         chi.URLParam(r, "planID"),
		ProductID:      req.ProductID,
		ProductOptions: req.ProductOptions,
		Comment:        req.Comment,
	}
	if req.DesiredDate != nil {
		d, err := time.Parse(dateLayout, *req.DesiredDate)
		if err != nil {
			s.writeError(w, r, badRequest(fmt.Sprintf("desired_date must be YYYY-MM-DD: %v", err)))
			return
		}
		in.DesiredDate = &d
	}
	s.respondPlan(w, r, func() (*domain.PlanView, error) {
		return s.plans.ConfigureProduct(r.Context(), in)
	})
}

func (s *Server) reconfigureOrder(w http.ResponseWriter, r *http.Request) {
	var req modulesRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPlan(w, r, func() (*domain.PlanView, error) {
		return s.plans.ReconfigureOrder(r.Context(), service.ReconfigureOrderInput{OrderID: chi.URLParam(r, "orderID"), ModuleIDs: req.ModuleIDs})
	})
}

func (s *Server) dispatchOrder(w http.ResponseWriter, r *http.Request) {
	var req modulesRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.respondPlan(w, r, func() (*domain.PlanView, error) {
		return s.plans.DispatchOrder(r.Context(), service.DispatchOrderInput{OrderID: chi.URLParam(r, "orderID"), ModuleIDs: req.ModuleIDs})
	})
}

func (s *Server) withdrawOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.completions.Withdraw(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	s.handleMessage(w, r, s.completions.Complete)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.handleMessage(w, r, s.completions.Cancel)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, handle func(ctx context.Context, msg []byte) (*service.CompletionOutcome, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, r, badRequest(fmt.Sprintf("reading message: %v", err)))
		return
	}
	out, err := handle(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !out.Validation.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:  "message rejected: " + out.Validation.Summary(),
			Kind:   "validation",
			Errors: out.Validation.Problems,
		})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{WorkOrder: toOrderJSON(out.Order), Validation: out.Validation})
}

// respondPlan writes the plan view returned by op.
func (s *Server) respondPlan(w http.ResponseWriter, r *http.Request, op func() (*domain.PlanView, error)) {
	view, err := op()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanJSON(view))
}
