package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/config"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/external"
	"github.com/alexanderramin/workorders/internal/httpapi"
	"github.com/alexanderramin/workorders/internal/lock"
	"github.com/alexanderramin/workorders/internal/metrics"
	"github.com/alexanderramin/workorders/internal/repository"
	"github.com/alexanderramin/workorders/internal/service"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the work order HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			srv, err := newServer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = opts.v.BindPFlag("http_addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// server is the wired API with the resources it owns.
type server struct {
	http    *http.Server
	logger  *slog.Logger
	closers []io.Closer
}

func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	if missing := cfg.MissingServices(); len(missing) > 0 {
		return nil, fmt.Errorf("serve needs a url for every collaborator; missing: %s", strings.Join(missing, ", "))
	}

	s := &server{logger: logger}
	database, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, database)

	var locker lock.Locker = lock.NewMemoryLocker()
	var events external.EventSink = external.NewLogEventSink(logger)
	if cfg.RedisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: cfg.RedisAddr})
		s.closers = append(s.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		locker = lock.NewRedisLocker(client, cfg.LockPrefix)
		events = external.NewRedisEventSink(client, cfg.EventsChannel)
	}

	calls := external.NewLogObserver(logger)
	materials := external.NewHTTPMaterialRegistry(cfg.Material.Client(), calls)
	sets := external.NewHTTPSetService(cfg.Set.Client(), calls)

	plans := repository.NewSQLiteWorkPlanRepo(database)
	orders := repository.NewSQLiteWorkOrderRepo(database)
	products := repository.NewSQLiteCatalogueRepo(database)
	uow := db.NewSQLiteUnitOfWork(database)

	m := metrics.New()
	useCases := service.NewLogUseCaseObserver(logger)

	planSvc := service.NewPlanService(service.PlanDeps{
		Plans:     plans,
		Orders:    orders,
		Catalogue: products,
		UoW:       uow,
		Materials: materials,
		Sets:      sets,
		Projects:  external.NewHTTPProjectDirectory(cfg.Project.Client(), calls),
		Billing:   external.NewHTTPBilling(cfg.Billing.Client(), calls),
		Dispatch:  external.NewHTTPDispatchSink(cfg.LIMS.Client(), calls),
		Events:    events,
		Locker:    locker,
		LockTTL:   cfg.LockTTL,
		Logger:    logger,
	}, useCases, m)

	// The material registry also serves containers and the message schemas.
	completionSvc := service.NewCompletionService(service.CompletionDeps{
		Orders:     orders,
		UoW:        uow,
		Materials:  materials,
		Containers: external.NewHTTPContainerRegistry(cfg.Material.Client(), calls),
		Sets:       sets,
		Schemas:    completion.NewSchemaCache(materials, cfg.SchemaTTL),
		Events:     events,
		Locker:     locker,
		LockTTL:    cfg.LockTTL,
		Logger:     logger,
		Runs:       m,
		Rejections: m,
	}, useCases, m)

	catalogueSvc := service.NewCatalogueService(products, uow, useCases, m)

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(planSvc, completionSvc, catalogueSvc, logger, m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (s *server) run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("http_listening", "addr", s.http.Addr)
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http_shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http_shutdown_incomplete", "err", err)
		return s.http.Close()
	}
	return nil
}

// Close releases the store and broker connections in reverse order.
func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
