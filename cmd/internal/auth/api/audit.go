package authapi

import (
	"context"
	"strings"

	"trackd/cmd/identity"
)

func (h *Handler) auditDeviceRegistered(ctx context.Context, d identity.Device) {
	h.insertAudit(ctx, "auth.device.registered", d.ID, d.DeviceID)
}

func (h *Handler) auditDeviceValidated(ctx context.Context, d identity.Device) {
	h.insertAudit(ctx, "auth.device.validated", d.ID, d.DeviceID)
}

func (h *Handler) auditTokenRefreshed(ctx context.Context, d identity.Device) {
	h.insertAudit(ctx, "auth.token.refreshed", d.ID, d.DeviceID)
}

func (h *Handler) auditLogout(ctx context.Context, userID, deviceID string) {
	h.insertAudit(ctx, "auth.logout", userID, deviceID)
}

// insertAudit is best-effort: a failed audit write is logged and never surfaces to the
// client. It is a no-op outside Postgres mode.
func (h *Handler) insertAudit(ctx context.Context, action, userID, deviceID string) {
	if h == nil || h.pool == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO trackd.audit_log (user_id, device_id, action, created_at)
		VALUES ($1, $2, $3, now())
	`, userID, deviceID, action)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}
