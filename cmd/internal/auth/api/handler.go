package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"trackd/cmd/identity"
	"trackd/cmd/internal/auth/token"
)

// Stable failure codes surfaced to clients.
const (
	codeValidationError   = "validation_error"
	codeMissingToken      = "missing_token"
	codeInvalidToken      = "invalid_token"
	codeTokenExpired      = "token_expired"
	codeRefreshExpired    = "refresh_expired"
	codeInvalidTokenClass = "invalid_token_class"
	codeIdentityMismatch  = "identity_mismatch"
	codeServerError       = "server_error"
)

// Handler wires the session endpoints to the identity store and token service.
type Handler struct {
	log *slog.Logger
	cfg Config

	store  identity.Store
	tokens *token.Service

	// pool is used for best-effort audit inserts only; nil outside Postgres mode.
	pool *pgxpool.Pool
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, store identity.Store, tokens *token.Service, pool *pgxpool.Pool) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("auth: nil identity store")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token service")
	}
	return &Handler{log: log, cfg: cfg, store: store, tokens: tokens, pool: pool}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/device", h.handleDevice)
	mux.HandleFunc("/auth/refresh-token", h.handleRefresh)
	mux.HandleFunc("/auth/verify", h.handleVerify)
	mux.HandleFunc("/auth/logout", h.handleLogout)
}

// ---- handlers ----

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req deviceRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	deviceID := strings.TrimSpace(req.DeviceID)

	if email == "" || deviceID == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "email and deviceId are required")
		return
	}
	if !identity.ValidEmail(email) {
		writeError(w, http.StatusBadRequest, codeValidationError, "email format is invalid")
		return
	}
	if !identity.ValidDeviceID(deviceID) {
		writeError(w, http.StatusBadRequest, codeValidationError, "deviceId must be at least 3 characters")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	res, err := h.store.FindOrCreateDevice(ctx, identity.FindOrCreateInput{
		Email:    email,
		DeviceID: deviceID,
		Now:      now,
	})
	if err != nil {
		h.log.Error("auth.device.store.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	accessToken, _, err := h.tokens.IssueAccess(res.Device, now)
	if err != nil {
		h.log.Error("auth.device.issue_access.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	refreshToken, _, err := h.tokens.IssueRefresh(res.Device, now)
	if err != nil {
		h.log.Error("auth.device.issue_refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	msg := "device validated"
	if res.Created {
		msg = "device registered"
		h.log.Info("auth.device.created", "user_id", res.Device.ID, "device_id", res.Device.DeviceID)
		h.auditDeviceRegistered(ctx, res.Device)
	} else {
		h.log.Info("auth.device.validated", "user_id", res.Device.ID, "device_id", res.Device.DeviceID)
		h.auditDeviceValidated(ctx, res.Device)
	}

	writeJSON(w, http.StatusOK, deviceResponse{
		OK:           true,
		Message:      msg,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       res.Device.ID,
		Email:        res.Device.Email,
		DeviceID:     res.Device.DeviceID,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
			return
		}
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		writeError(w, http.StatusBadRequest, codeMissingToken, "refreshToken is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	claims, err := h.tokens.VerifyRefresh(raw, now)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrWrongTokenClass):
			writeError(w, http.StatusUnauthorized, codeInvalidTokenClass, "not a refresh token")
		case errors.Is(err, token.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, codeRefreshExpired, "refresh token expired, register the device again")
		default:
			// A valid access token replayed here fails the refresh signature; name the
			// class confusion precisely instead of reporting garbage input.
			if _, aerr := h.tokens.VerifyAccess(raw, now); aerr == nil {
				writeError(w, http.StatusUnauthorized, codeInvalidTokenClass, "not a refresh token")
				return
			}
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid refresh token")
		}
		return
	}

	dev, err := h.store.GetDeviceByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid refresh token")
			return
		}
		h.log.Error("auth.refresh.store.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	if dev.DeviceID != claims.DeviceID {
		writeError(w, http.StatusUnauthorized, codeIdentityMismatch, "token does not match this device")
		return
	}

	accessToken, _, err := h.tokens.IssueAccess(dev, now)
	if err != nil {
		h.log.Error("auth.refresh.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	h.auditTokenRefreshed(ctx, dev)

	writeJSON(w, http.StatusOK, refreshResponse{
		OK:          true,
		AccessToken: accessToken,
		Message:     "access token refreshed",
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "token not provided")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	claims, err := h.tokens.VerifyAccess(raw, now)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrWrongTokenClass):
			writeError(w, http.StatusUnauthorized, codeInvalidTokenClass, "not an access token")
		case errors.Is(err, token.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, codeTokenExpired, "token expired")
		default:
			if _, rerr := h.tokens.VerifyRefresh(raw, now); rerr == nil {
				writeError(w, http.StatusUnauthorized, codeInvalidTokenClass, "not an access token")
				return
			}
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid token")
		}
		return
	}

	dev, err := h.store.GetDeviceByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid token")
			return
		}
		h.log.Error("auth.verify.store.fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	// A record whose deviceId changed since issuance must not verify.
	if dev.DeviceID != claims.DeviceID {
		writeError(w, http.StatusUnauthorized, codeIdentityMismatch, "token does not match this device")
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		OK:       true,
		Message:  "token valid",
		UserID:   dev.ID,
		Email:    dev.Email,
		DeviceID: dev.DeviceID,
	})
}

// handleLogout always reports success. There is no session table to revoke against;
// the contract is "the client should discard its tokens". The token, when present, is
// decoded best-effort for auditing only.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			h.log.Info("auth.logout.bad_body", "err", err)
		}
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		if claims, err := h.tokens.VerifyRefresh(raw, now); err == nil {
			h.log.Info("auth.logout", "user_id", claims.UserID, "device_id", claims.DeviceID)
			h.auditLogout(ctx, claims.UserID, claims.DeviceID)
		} else {
			h.log.Info("auth.logout.unverified_token", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, logoutResponse{OK: true, Message: "logged out"})
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
