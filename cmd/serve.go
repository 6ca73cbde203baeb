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
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/scheduler"
	"github.com/sells-group/research-orchestrator/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Interval snapshots for every in-flight project.
		go env.Backups.RunInterval(ctx, time.Duration(cfg.Backup.IntervalSecs)*time.Second, env.Scheduler.ActiveProjects)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Scheduler, env.Store),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface. Handlers are thin: admission,
// cancellation, and status all delegate to the scheduler and store.
func newRouter(sched *scheduler.Scheduler, st store.Store) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/research", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Topic     string `json:"topic"`
			OwnerID   string `json:"owner_id"`
			ProjectID string `json:"project_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.OwnerID == "" {
			writeError(w, http.StatusBadRequest, "owner_id is required")
			return
		}

		ctx := req.Context()
		projectID := body.ProjectID
		if projectID == "" {
			if body.Topic == "" {
				writeError(w, http.StatusBadRequest, "topic is required for a new project")
				return
			}
			projectID = uuid.NewString()
		}

		if _, err := st.GetProject(ctx, projectID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "project lookup failed")
				return
			}
			if body.Topic == "" {
				writeError(w, http.StatusBadRequest, "unknown project")
				return
			}
			if err := st.UpsertProject(ctx, &model.Project{
				ID:     projectID,
				Topic:  body.Topic,
				Status: model.ProjectStatusIdle,
			}); err != nil {
				writeError(w, http.StatusInternalServerError, "project create failed")
				return
			}
		}

		taskID, err := sched.Enqueue(ctx, projectID, body.OwnerID)
		switch {
		case errors.Is(err, scheduler.ErrOwnerLimit):
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		case errors.Is(err, scheduler.ErrProjectBusy):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, scheduler.ErrUnknownProject):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id":    taskID,
			"project_id": projectID,
		})
	})

	r.Get("/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		task, err := sched.Status(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown task")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "task lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, task)
	})

	r.Post("/tasks/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if _, err := st.GetTask(req.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "unknown task")
				return
			}
			writeError(w, http.StatusInternalServerError, "task lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": sched.Cancel(id)})
	})

	r.Get("/projects/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		project, err := st.GetProject(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown project")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "project lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, project)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
