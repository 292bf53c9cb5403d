// Package api exposes the HTTP surface: the enqueue ingress, the read API
// over the store, the GTFS-Realtime feed and the operational endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denisplanner/backend/internal/database"
	"github.com/denisplanner/backend/internal/gtfs"
	"github.com/denisplanner/backend/internal/predict"
)

// Enqueuer is the producer-side port of the report queue.
type Enqueuer interface {
	Push(ctx context.Context, payload []byte) error
	Len(ctx context.Context) (int64, error)
}

// Server serves the REST/JSON API. It never writes to the store: the ingress
// touches only the queue, and the read endpoints run alongside the single
// pipeline writer.
type Server struct {
	db        *database.DB
	queue     Enqueuer
	feed      *gtfs.Feed
	predictor *predict.Predictor // nil disables the prediction endpoint
}

// NewServer wires the HTTP surface.
func NewServer(db *database.DB, queue Enqueuer, feed *gtfs.Feed, predictor *predict.Predictor) *Server {
	return &Server{db: db, queue: queue, feed: feed, predictor: predictor}
}

// Router builds the mux router with all endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/enqueue", s.handleEnqueue).Methods("POST")

	r.HandleFunc("/api/incidents", s.handleIncidents).Methods("GET")
	r.HandleFunc("/api/incidents/{id:[0-9]+}/reports", s.handleIncidentReports).Methods("GET")
	r.HandleFunc("/api/incidents/{id:[0-9]+}/prediction", s.handlePrediction).Methods("GET")
	r.HandleFunc("/api/reports", s.handleReports).Methods("GET")
	r.HandleFunc("/api/types", s.handleTypes).Methods("GET")
	r.HandleFunc("/api/locations", s.handleLocations).Methods("GET")

	r.HandleFunc("/gtfs/trip-updates", s.feed.Handler).Methods("GET")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
