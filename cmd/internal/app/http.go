package app

import (
	"encoding/json"
	"net/http"
	"time"

	authapi "trackd/cmd/internal/auth/api"
	"trackd/cmd/internal/position"

	"github.com/jackc/pgx/v5/pgxpool"
)

// healthResponse is the shape served on /health for uptime probes and the
// mobile client's connectivity check.
type healthResponse struct {
	OK        bool      `json:"ok"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	metrics *Metrics,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	auth *authapi.Handler,
	positions *position.Handler,
) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		database := "memory"
		if dbEnabled {
			database = "connected"
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				database = "unreachable"
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(healthResponse{
			OK:        true,
			Status:    "up",
			Timestamp: time.Now().UTC(),
			Database:  database,
		})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	if auth != nil {
		auth.Register(mux)
	}
	if positions != nil {
		positions.Register(mux)
	}
}
