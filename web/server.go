package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kisy/netmole/model"
	"github.com/kisy/netmole/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.Logger("web")

// StatsProvider is satisfied by *stats.Aggregator.
type StatsProvider interface {
	GetStartTime() time.Time
	GetGlobalStats() model.GlobalStats
	Reset() error
}

type Server struct {
	agg      StatsProvider
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

func NewServer(agg StatsProvider, gatherer prometheus.Gatherer) *Server {
	return &Server{
		agg:      agg,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) RegisterHandlers() {
	s.mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		response := struct {
			StartTime time.Time         `json:"start_time"`
			Global    model.GlobalStats `json:"global"`
		}{
			StartTime: s.agg.GetStartTime(),
			Global:    s.agg.GetGlobalStats(),
		}
		json.NewEncoder(w).Encode(response)
	})

	s.mux.HandleFunc("/api/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		log.Infow("API: reset session totals", "remote", r.RemoteAddr)
		if err := s.agg.Reset(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}
