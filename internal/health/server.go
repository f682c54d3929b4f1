// Package health serves liveness and game status over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"telegram-blackjack-bot/internal/game/blackjack"
)

// Pinger checks the database. *db.Pool satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// GameInfo is one running table.
type GameInfo struct {
	ID      string `json:"id"`
	ChatID  int64  `json:"chat_id"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
}

// NewRouter builds the health routes.
func NewRouter(db Pinger, registry *blackjack.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("HTTP request")
	}))

	r.Get("/healthz", healthz(db))
	r.Get("/games", games(registry))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func games(registry *blackjack.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := registry.Games()
		out := make([]GameInfo, 0, len(list))
		for _, g := range list {
			g.Lock()
			out = append(out, GameInfo{
				ID:      g.ID,
				ChatID:  g.ChatID,
				Phase:   g.Phase.String(),
				Players: len(g.Players),
			})
			g.Unlock()
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "games": out})
	}
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer creates a server on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Health server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
