package server

import (
	"net/http"
	"time"

	"offer-clv/pkg/dashboard"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	dash          *dashboard.Dashboard
	dataRoot      string
	reloadTimeout time.Duration
	logger        *zap.Logger
}

func NewHandler(dash *dashboard.Dashboard, dataRoot string, reloadTimeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{dash: dash, dataRoot: dataRoot, reloadTimeout: reloadTimeout, logger: logger}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", handler.getDashboard)
		r.Get("/summary", handler.getSummary)
		r.Get("/charts/repeaters", handler.getRepeatersChart)
		r.Get("/charts/clv", handler.getCLVChart)
		r.Post("/reload", handler.reload)
	})

	if handler.dataRoot != "" {
		r.Handle("/data/*", http.FileServer(http.Dir(handler.dataRoot)))
	}
	return r
}
