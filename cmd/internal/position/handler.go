package position

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"trackd/cmd/identity"
	"trackd/cmd/internal/auth/token"
)

// Config controls the position API behavior.
type Config struct {
	MaxBodyBytes int64

	// WSOriginPatterns is the cross-origin allow list for the live feed
	// (filepath.Match patterns, as understood by websocket.Accept).
	WSOriginPatterns []string

	WSWriteTimeout time.Duration
}

// LoadConfigFromEnv loads position config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:   1 << 20,
		WSWriteTimeout: 5 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("TRACKD_POSITION_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRACKD_POSITION_WS_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.WSOriginPatterns = append(cfg.WSOriginPatterns, p)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRACKD_POSITION_WS_WRITE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WSWriteTimeout = d
		}
	}
	return cfg
}

// Handler wires the position endpoints to the store, token verifier, and live hub.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	store  Store
	tokens *token.Service
	hub    *Hub
}

// NewHandler constructs a position Handler.
func NewHandler(log *slog.Logger, cfg Config, store Store, tokens *token.Service, hub *Hub) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("position: nil store")
	}
	if tokens == nil {
		return nil, errors.New("position: nil token service")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.WSWriteTimeout <= 0 {
		cfg.WSWriteTimeout = 5 * time.Second
	}
	return &Handler{log: log, cfg: cfg, store: store, tokens: tokens, hub: hub}, nil
}

// Register wires position routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/position/{$}", h.requireAuth(h.handleSave))
	mux.HandleFunc("GET /api/position/{$}", h.requireAuth(h.handleListOwn))
	mux.HandleFunc("GET /api/position/by-email/{email}", h.requireAuth(h.handleListByEmail))
	mux.HandleFunc("GET /api/position/by-device/{deviceId}", h.requireAuth(h.handleListByDevice))
	mux.HandleFunc("GET /api/position/live", h.handleLive)
}

// ---- auth middleware ----

type ctxKey struct{}

// claimsFromContext returns the verified access claims stored by requireAuth.
func claimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(token.Claims)
	return c, ok
}

// requireAuth verifies the bearer access token and stashes its claims in the request
// context. It checks the token only; record-level checks belong to the endpoints.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusForbidden, "missing_token", "token required")
			return
		}

		claims, err := h.tokens.VerifyAccess(raw, time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
			case errors.Is(err, token.ErrWrongTokenClass):
				writeError(w, http.StatusUnauthorized, "invalid_token_class", "not an access token")
			default:
				writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
			}
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	}
}

// ---- handlers ----

type saveRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

type savedPosition struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type saveResponse struct {
	OK       bool          `json:"ok"`
	Message  string        `json:"message"`
	Position savedPosition `json:"position"`
}

type listResponse struct {
	OK        bool       `json:"ok"`
	Positions []Position `json:"positions"`
	Count     int        `json:"count"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req saveRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "lat and lng are required")
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "validation_error", "lat/lng out of range")
		return
	}

	now := time.Now().UTC()
	ts := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = req.Timestamp.UTC()
	}

	id, err := identity.NewULID(now)
	if err != nil {
		h.log.Error("position.save.id.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not save position")
		return
	}

	p := Position{
		ID:        id,
		UserID:    claims.UserID,
		Email:     claims.Email,
		DeviceID:  claims.DeviceID,
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Accuracy:  req.Accuracy,
		Timestamp: ts,
	}

	if err := h.store.Insert(r.Context(), p); err != nil {
		h.log.Error("position.save.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not save position")
		return
	}

	if h.hub != nil {
		h.hub.Publish(p)
	}

	writeJSON(w, http.StatusOK, saveResponse{
		OK:      true,
		Message: "position saved",
		Position: savedPosition{
			ID:        p.ID,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Timestamp: p.Timestamp,
		},
	})
}

func (h *Handler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	list, err := h.store.ListByOwner(r.Context(), claims.Email, claims.DeviceID, queryFromRequest(r))
	if err != nil {
		h.log.Error("position.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not query positions")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{OK: true, Positions: list, Count: len(list)})
}

func (h *Handler) handleListByEmail(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	email := identity.NormalizeEmail(r.PathValue("email"))
	// Only the identity's own history is visible.
	if claims.Email != email {
		writeError(w, http.StatusForbidden, "forbidden", "not authorized to query these positions")
		return
	}

	list, err := h.store.ListByEmail(r.Context(), email, queryFromRequest(r))
	if err != nil {
		h.log.Error("position.list_by_email.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not query positions")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{OK: true, Positions: list, Count: len(list)})
}

func (h *Handler) handleListByDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	deviceID := strings.TrimSpace(r.PathValue("deviceId"))
	if claims.DeviceID != deviceID {
		writeError(w, http.StatusForbidden, "forbidden", "not authorized to query these positions")
		return
	}

	list, err := h.store.ListByDevice(r.Context(), deviceID, queryFromRequest(r))
	if err != nil {
		h.log.Error("position.list_by_device.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not query positions")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{OK: true, Positions: list, Count: len(list)})
}

// ---- helpers ----

func queryFromRequest(r *http.Request) Query {
	var q Query
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Page = n
		}
	}
	return q.Normalize()
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Code: code, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
