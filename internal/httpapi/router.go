// Package httpapi serves the feeding engine over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

// Checker runs one reminder pass on demand.
type Checker interface {
	RunScheduledCheck(ctx context.Context, now time.Time) (*scheduler.CheckResult, error)
}

type Options struct {
	Feeding   *service.FeedingService
	Inventory *service.InventoryService
	// Checker may be nil when the scheduler is disabled.
	Checker     Checker
	Logger      *logrus.Logger
	Now         func() time.Time
	HorizonDays int
}

type server struct {
	feeding     *service.FeedingService
	inventory   *service.InventoryService
	checker     Checker
	logger      *logrus.Logger
	now         func() time.Time
	horizonDays int
}

func NewRouter(opts Options) http.Handler {
	s := &server{
		feeding:     opts.Feeding,
		inventory:   opts.Inventory,
		checker:     opts.Checker,
		logger:      opts.Logger,
		now:         opts.Now,
		horizonDays: opts.HorizonDays,
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.horizonDays <= 0 {
		s.horizonDays = service.DefaultHorizonDays
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/animals/{animalID}", func(ar chi.Router) {
		ar.Put("/", s.putAnimal)
		ar.Get("/prediction", s.predictNextFeeding)
		ar.Get("/reminder", s.getReminder)
		ar.Put("/reminder", s.setReminder)
		ar.Patch("/reminder", s.updateReminder)
		ar.Delete("/reminder", s.deactivateReminder)
		ar.Post("/reminder/fed", s.recordFeeding)
	})

	r.Post("/feedings", s.logFeeding)
	r.Get("/reminders/due", s.getDue)
	r.Post("/reminders/check", s.runCheck)

	r.Route("/inventory", func(ir chi.Router) {
		ir.Get("/", s.listStock)
		ir.Post("/stock", s.addStock)
		ir.Post("/receipts", s.importReceipt)
		ir.Get("/forecast", s.getForecast)
		ir.Get("/shopping-list", s.getShoppingList)
		ir.Get("/{foodType}/{foodSize}", s.getSKU)
		ir.Post("/{foodType}/{foodSize}/debit", s.debit)
		ir.Post("/{foodType}/{foodSize}/adjust", s.adjust)
		ir.Get("/{foodType}/{foodSize}/transactions", s.listTransactions)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": chimw.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
