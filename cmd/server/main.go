// Package main provides a local HTTP server for development and testing.
// It serves the same handlers as the Lambda functions plus the plan confirmation
// endpoint and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"case-disposition-engine/internal/handlers"
	"case-disposition-engine/internal/metrics"
	"case-disposition-engine/internal/utils"
)

// maxBodyBytes caps request bodies, CSV uploads included.
const maxBodyBytes = 10 << 20

// Server holds all dependencies
type Server struct {
	matching *handlers.MatchingHandler
	confirm  *handlers.ConfirmHandler
	imports  *handlers.CaseImportHandler
	health   *handlers.HealthHandler
}

func main() {
	// Initialize logger first
	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.Component("server")

	deps, err := handlers.LoadDependencies(context.Background())
	if err != nil {
		logger.Fatal("Could not load configuration", utils.Error(err))
	}
	defer deps.Close()

	if deps.DB != nil {
		if err := deps.DB.Migrate(context.Background()); err != nil {
			logger.Warn("Could not apply schema", utils.Error(err))
		}
	} else {
		logger.Warn("Server will run in preview mode without database: requests must carry batches and organizations")
	}

	server := &Server{
		matching: deps.MatchingHandler(),
		health:   deps.HealthHandler(),
	}
	if confirm, err := deps.ConfirmHandler(); err == nil {
		server.confirm = confirm
	}
	if deps.DB != nil {
		// Local uploads post the CSV body directly, so no file store is needed.
		server.imports = handlers.NewCaseImportHandler(nil, deps.DB.Cases(), deps.Config.AutoPublishPackages)
	}

	// Setup routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/api/health", server.healthHandler)

	// Matching
	mux.HandleFunc("/api/match", apiGateway(server.matching.HandleMatch))
	mux.HandleFunc("/api/plan", apiGateway(server.matching.HandlePlan))
	mux.HandleFunc("/api/plans/confirm", server.confirmHandler)

	// Case import
	mux.HandleFunc("/api/cases/import", server.importHandler)
	if deps.S3 != nil {
		mux.HandleFunc("/api/presigned-url", apiGateway(handlers.NewPresignedURLHandler(deps.S3).Handle))
	}

	// Metrics
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	addr := fmt.Sprintf("0.0.0.0:%s", deps.Config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Case disposition API server listening",
			utils.String("addr", addr),
			utils.Bool("database", deps.DB != nil),
			utils.Bool("cache", deps.OrgCache != nil && deps.OrgCache.Enabled()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", utils.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", utils.Error(err))
	}
}

// apiGateway exposes an API Gateway handler over plain HTTP.
func apiGateway(h handlers.APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, handlers.Response{Success: false, Error: "Invalid request body"})
			return
		}

		query := make(map[string]string)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				query[key] = values[0]
			}
		}

		resp, err := h(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            r.Method,
			Path:                  r.URL.Path,
			QueryStringParameters: query,
			Body:                  string(body),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, handlers.Response{Success: false, Error: err.Error()})
			return
		}

		for key, value := range resp.Headers {
			// CORS is handled by the middleware
			if key == "Content-Type" {
				w.Header().Set(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	report, status := s.health.Check(r.Context())

	writeJSON(w, status, handlers.Response{
		Success: status == http.StatusOK,
		Message: "Case disposition API is running",
		Data:    report,
	})
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	if s.confirm == nil {
		writeJSON(w, http.StatusServiceUnavailable, handlers.Response{
			Success: false,
			Error:   "confirming plans requires a database",
		})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	apiGateway(s.confirm.HandleConfirm)(w, r)
}

func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.imports == nil {
		writeJSON(w, http.StatusServiceUnavailable, handlers.Response{
			Success: false,
			Error:   "case import requires a database",
		})
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, handlers.Response{Success: false, Error: "Invalid request body"})
		return
	}

	result, err := s.imports.ImportCSV(r.Context(), string(content))
	if err != nil {
		utils.Component("server").Error("Case import failed", utils.Error(err))
		writeJSON(w, handlers.StatusForError(err), handlers.Response{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, handlers.Response{
		Success: result.Inserted > 0,
		Message: result.Message,
		Data:    result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
