// pkg/api/server.go

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hostpulse/hostpulse/pkg/alerting"
	"github.com/hostpulse/hostpulse/pkg/collector"
	"github.com/hostpulse/hostpulse/pkg/httpx"
	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/trend"
)

const defaultHistoryPeriod = 24 * time.Hour

// APIServer is the read-only JSON surface over the collector, stores, and
// analyzer. It owns the websocket hub for live pushes.
type APIServer struct {
	collector   *collector.Collector
	metricStore metricstore.Store
	alertStore  alerting.AlertStore
	analyzer    *trend.Analyzer
	hub         *streamHub
	router      *mux.Router
}

func NewAPIServer(
	c *collector.Collector,
	metricStore metricstore.Store,
	alertStore alerting.AlertStore,
	analyzer *trend.Analyzer,
) *APIServer {
	s := &APIServer{
		collector:   c,
		metricStore: metricStore,
		alertStore:  alertStore,
		analyzer:    analyzer,
		hub:         newStreamHub(),
		router:      mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)

	s.router.HandleFunc("/api/metrics", s.getMetrics).Methods("GET")
	s.router.HandleFunc("/api/history/{hostId}", s.getHistory).Methods("GET")
	s.router.HandleFunc("/api/predictions/{hostId}", s.getPredictions).Methods("GET")
	s.router.HandleFunc("/api/alerts", s.getAlerts).Methods("GET")
	s.router.HandleFunc("/api/health", s.getHealth).Methods("GET")
	s.router.HandleFunc("/api/stream", s.hub.handleStream)
}

// Router exposes the configured handler for the HTTP server.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Broadcast pushes the current host payload to every stream subscriber.
// Called after each collection tick.
func (s *APIServer) Broadcast() {
	s.hub.broadcast(s.hostPayload())
}

func (s *APIServer) hostPayload() HostPayload {
	host := s.collector.HostRecord()

	return HostPayload{
		ID:       host.ID,
		Name:     host.Name,
		Hostname: host.Hostname,
		OS:       host.OS,
		Status:   host.Status,
		Uptime:   host.Uptime,
		LastSeen: host.LastSeen,
		Metrics:  s.collector.LastSample(),
	}
}

func (s *APIServer) getMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, MetricsResponse{Servers: []HostPayload{s.hostPayload()}})
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hostID := vars["hostId"]

	period := defaultHistoryPeriod

	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid period", http.StatusBadRequest)
			return
		}

		period = parsed
	}

	samples, err := s.metricStore.Query(r.Context(), hostID, time.Now().Add(-period))
	if err != nil {
		log.Printf("Error querying history for %s: %v", hostID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, HistoryResponse{
		HostID: hostID,
		Period: period.String(),
		Data:   samples,
	})
}

func (s *APIServer) getPredictions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hostID := vars["hostId"]

	predictions, analyzed, err := s.analyzer.Predict(r.Context(), hostID)
	if err != nil {
		log.Printf("Error predicting trends for %s: %v", hostID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	resp := PredictionsResponse{
		HostID:         hostID,
		Predictions:    predictions,
		AnalyzedPoints: analyzed,
	}

	if analyzed < trend.MinSamples {
		resp.Message = "Insufficient data for trend analysis"
	}

	if resp.Predictions == nil {
		resp.Predictions = []models.TrendResult{}
	}

	s.writeJSON(w, resp)
}

func (s *APIServer) getAlerts(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get("hostId")

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}

		limit = parsed
	}

	alerts, err := s.alertStore.Query(r.Context(), hostID, limit)
	if err != nil {
		log.Printf("Error querying alerts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	total, err := s.alertStore.Count(r.Context(), hostID)
	if err != nil {
		log.Printf("Error counting alerts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, AlertsResponse{Alerts: alerts, Total: total})
}

func (s *APIServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Start runs the hub's writer loop until ctx is canceled. The HTTP listener
// itself is owned by the lifecycle package.
func (s *APIServer) Start(ctx context.Context) error {
	s.hub.run(ctx)
	return nil
}

// Stop closes every stream subscriber.
func (s *APIServer) Stop(_ context.Context) error {
	s.hub.close()
	return nil
}
