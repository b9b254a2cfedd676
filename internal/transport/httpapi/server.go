package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"threatcache/internal/bootstrap/logging"
	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

// Checker is the slice of the threat-intel service the API exposes.
type Checker interface {
	CheckURLSecurity(ctx context.Context, rawURL string) threatintel.Verdict
	UpdateDatabase(ctx context.Context) (threatintel.UpdateSummary, error)
	Stats(ctx context.Context) (threatintel.Stats, error)
}

type checkResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	threatintel.Verdict
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewRouter builds the lookup API. ready reports whether the store has
// completed at least one ingestion; nil means always ready.
func NewRouter(ctx context.Context, svc Checker, ready func() bool) http.Handler {
	logCtx := logging.WithComponent(ctx, "transport.http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/check", func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.URL.Query().Get("url"))
			if raw == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url query parameter is required"})
				return
			}
			v := svc.CheckURLSecurity(r.Context(), raw)
			writeJSON(w, http.StatusOK, checkResponse{URL: raw, Status: v.Status(), Verdict: v})
		})

		r.Post("/update", func(w http.ResponseWriter, r *http.Request) {
			summary, err := svc.UpdateDatabase(r.Context())
			if err != nil {
				logging.Error(logCtx, "update via api failed",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Any("err", errs.Loggable(err)))
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := svc.Stats(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})
	})

	return r
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind, _ := errs.KindOf(err)
	switch kind {
	case errs.KindFetch, errs.KindDataFormat:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves handler on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "transport.http"), slog.String("addr", addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn(logCtx, "http graceful shutdown failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	logging.Info(logCtx, "http api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.Wrap(err, "listen and serve")
	}
	return nil
}
