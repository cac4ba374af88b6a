package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"community-gateway/internal/auth"
	"community-gateway/internal/config"
	"community-gateway/internal/database"
	"community-gateway/internal/gateway"
	"community-gateway/internal/handlers"
	"community-gateway/internal/notifications"
	"community-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize the notification store
	var store database.NotificationStore
	if cfg.Database.URL != "" {
		pg, err := database.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		store = pg
	} else {
		logger.Info("No DATABASE_URL set, using in-memory notification store")
		store = database.NewMemoryStore()
	}
	defer store.Close()

	// Initialize services
	authService := auth.NewService(cfg.JWT.Secret)
	gw := gateway.New(gateway.Options{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
	})
	notifier := notifications.NewService(store, gw.Router())

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(authService, gw)
	ingestHandlers := handlers.NewIngestHandlers(cfg.Ingest.Token, gw.Router(), notifier, gw)
	notificationHandlers := handlers.NewNotificationHandlers(authService, notifier)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, wsHandlers, ingestHandlers, notificationHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Gateway started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Gateway shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, wsHandlers *handlers.WebSocketHandlers, ingestHandlers *handlers.IngestHandlers, notificationHandlers *handlers.NotificationHandlers) {
	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)

	// Content-layer routes (service-token authenticated)
	mux.HandleFunc("/ingest", requirePost(ingestHandlers.HandleIngest))
	mux.HandleFunc("/notify", requirePost(ingestHandlers.HandleNotify))
	mux.HandleFunc("/revoke", requirePost(ingestHandlers.HandleRevoke))

	// Notification pull API
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		notificationHandlers.ListNotifications(w, r)
	})

	// Notification sub-routes
	mux.HandleFunc("/notifications/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// /notifications/read-all
		if r.URL.Path == "/notifications/read-all" {
			notificationHandlers.MarkAllRead(w, r)
			return
		}

		// /notifications/{id}/read
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) == 4 && parts[3] == "read" {
			notificationHandlers.MarkRead(w, r)
			return
		}

		http.Error(w, "endpoint not found", http.StatusNotFound)
	})
}

func requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   GET  /ws")
	logger.Info("   POST /ingest")
	logger.Info("   POST /notify")
	logger.Info("   POST /revoke")
	logger.Info("   GET  /notifications")
	logger.Info("   POST /notifications/{id}/read")
	logger.Info("   POST /notifications/read-all")
}
