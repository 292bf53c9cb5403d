package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/denisplanner/backend/internal/database"
)

// handleEnqueue validates the payload is JSON and pushes it onto
// report_queue. All semantic validation happens in the consumer.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}

	if err := s.queue.Push(r.Context(), body); err != nil {
		slog.Error("enqueue failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not enqueue report"})
		return
	}

	size, err := s.queue.Len(r.Context())
	if err != nil {
		slog.Warn("queue length unavailable", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "Report enqueued",
		"queue_size": size,
	})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.db.ListIncidents(r.Context())
	if err != nil {
		serverError(w, "list incidents", err)
		return
	}
	if incidents == nil {
		incidents = []database.IncidentWithLocation{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.ListReports(r.Context())
	if err != nil {
		serverError(w, "list reports", err)
		return
	}
	if reports == nil {
		reports = []database.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleIncidentReports(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid incident id"})
		return
	}
	reports, err := s.db.ReportsByIncident(r.Context(), id)
	if err != nil {
		serverError(w, "incident reports", err)
		return
	}
	if reports == nil {
		reports = []database.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No model loaded"})
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid incident id"})
		return
	}
	incident, err := s.db.GetIncident(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Incident not found"})
			return
		}
		serverError(w, "get incident", err)
		return
	}
	features := s.predictor.Transform(incident)
	writeJSON(w, http.StatusOK, map[string]any{
		"incident_id":   incident.ID,
		"cluster":       s.predictor.Predict(features),
		"confidence":    s.predictor.Confidence(features),
		"model_version": s.predictor.Version(),
	})
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.db.ListReportTypes(r.Context())
	if err != nil {
		serverError(w, "list types", err)
		return
	}
	if types == nil {
		types = []database.ReportTypeRow{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.db.ListLocations(r.Context())
	if err != nil {
		serverError(w, "list locations", err)
		return
	}
	if locations == nil {
		locations = []database.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queueStatus := "connected"
	if _, err := s.queue.Len(r.Context()); err != nil {
		queueStatus = "error"
	}
	storeStatus := "connected"
	if _, err := s.db.ListReportTypes(r.Context()); err != nil {
		storeStatus = "error"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"queue":  queueStatus,
		"store":  storeStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func serverError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
}
