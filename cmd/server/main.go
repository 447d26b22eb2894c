package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ductline/ductline/backend-go/internal/asset"
	"github.com/ductline/ductline/backend-go/internal/config"
	"github.com/ductline/ductline/backend-go/internal/db"
	"github.com/ductline/ductline/backend-go/internal/export"
	mw "github.com/ductline/ductline/backend-go/internal/middleware"
	"github.com/ductline/ductline/backend-go/internal/project"
	"github.com/ductline/ductline/backend-go/internal/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := db.New(pool)

	hub := session.NewHub()
	hub.SetGridSpacing(cfg.GridSpacing)
	// New rooms open with the latest persisted design.
	hub.SetDesignLoader(func(projectID string) (string, bool) {
		snap, err := queries.GetLatestSnapshot(context.Background(), projectID)
		if err != nil {
			return "", false
		}
		return string(snap.Design), true
	})
	go hub.Run()

	projectService := project.NewService(queries)
	projectHandler := project.NewHandler(projectService, hub)

	assetHandler := asset.NewHandler("./data/drawings")
	exportHandler := export.NewHandler()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Floor plan reference drawings
	r.HandleFunc("/drawings/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/drawings/{drawingId}", assetHandler.Remove).Methods("DELETE", "OPTIONS")
	r.PathPrefix("/drawings/").Handler(assetHandler.Serve()).Methods("GET")

	// Bill of materials export
	r.HandleFunc("/export/bom", exportHandler.ExportBOM).Methods("POST", "OPTIONS")

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	api.HandleFunc("/projects/{projectId}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{projectId}", projectHandler.Rename).Methods("PATCH")
	api.HandleFunc("/projects/{projectId}", projectHandler.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/snapshots/latest", projectHandler.GetLatestSnapshot).Methods("GET")
	api.HandleFunc("/projects/{projectId}/snapshots", projectHandler.SaveSnapshot).Methods("POST")
	api.HandleFunc("/projects/{projectId}/metrics", projectHandler.Metrics).Methods("GET")

	// WebSocket endpoint
	originPatterns := strings.Split(cfg.AllowedOrigins, ",")
	for i, p := range originPatterns {
		originPatterns[i] = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(p), "http://"), "https://")
	}
	r.HandleFunc("/ws/project/{projectId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, originPatterns []string) {
	vars := mux.Vars(r)
	projectID := vars["projectId"]

	// Display name is client-chosen; sessions are unauthenticated.
	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = "Anonymous"
	}
	userID := "user-" + uuid.New().String()[:8]

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(hub, conn, userID, displayName, projectID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
