package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/enrich"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		return startServer(ctx, buildMux(env), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// buildMux wires the HTTP routes over env.
func buildMux(env *agentEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/enrich/{person_id}", func(w http.ResponseWriter, r *http.Request) {
		personID := chi.URLParam(r, "person_id")
		res, err := env.Enricher.Run(r.Context(), personID)
		if err != nil {
			status, msg := enrichErrorStatus(err)
			if status == http.StatusInternalServerError {
				zap.L().Error("enrich request failed", zap.String("person_id", personID), zap.Error(err))
			}
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		writeJSON(w, http.StatusOK, enrichResponse{Status: res.Status, Result: res.Snippet})
	})

	r.Get("/snippets/{company_id}", func(w http.ResponseWriter, r *http.Request) {
		snippets, err := env.Store.ListSnippets(r.Context(), store.SnippetFilter{
			EntityID: chi.URLParam(r, "company_id"),
		})
		if err != nil {
			writeStoreError(w, "list snippets", err)
			return
		}
		if snippets == nil {
			snippets = []model.ContextSnippet{}
		}
		writeJSON(w, http.StatusOK, snippets)
	})

	r.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
		logs, err := env.Store.ListLogs(r.Context(), store.LogFilter{})
		if err != nil {
			writeStoreError(w, "list logs", err)
			return
		}
		if logs == nil {
			logs = []model.SearchLogRecord{}
		}
		writeJSON(w, http.StatusOK, logs)
	})

	r.Get("/people", func(w http.ResponseWriter, r *http.Request) {
		people, err := env.Directory.ListPeople(r.Context(), 0)
		if err != nil {
			writeStoreError(w, "list people", err)
			return
		}
		if people == nil {
			people = []model.Person{}
		}
		writeJSON(w, http.StatusOK, people)
	})

	return r
}

type enrichResponse struct {
	Status model.RunStatus      `json:"status"`
	Result model.ContextSnippet `json:"result"`
}

// enrichErrorStatus maps a failed run to an HTTP status and message.
func enrichErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, enrich.ErrPersonNotFound):
		return http.StatusNotFound, "person not found"
	case errors.Is(err, enrich.ErrCompanyNotFound):
		return http.StatusNotFound, "company not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeStoreError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("store request failed", zap.String("action", action), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
