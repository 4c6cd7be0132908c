package position

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"trackd/cmd/internal/auth/token"
)

// handleLive upgrades the request to a websocket and streams position fixes for
// the caller's own device. The token travels in the Authorization header or,
// because browser websocket clients cannot set headers, in the access_token
// query parameter.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("access_token")
	}
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

	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "server_error", "live feed unavailable")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.WSOriginPatterns,
	})
	if err != nil {
		h.log.Warn("position.live.accept.fail", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	sub := h.hub.Subscribe(claims.DeviceID)
	defer h.hub.Unsubscribe(claims.DeviceID, sub)

	h.log.Info("position.live.open", "deviceId", claims.DeviceID)

	// The feed is write-only; CloseRead reaps the connection when the peer
	// goes away and cancels ctx.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-sub.Done():
			conn.Close(websocket.StatusTryAgainLater, "subscription dropped")
			return
		case p := <-sub.Fixes:
			if err := writeFix(ctx, conn, p, h.cfg.WSWriteTimeout); err != nil {
				h.log.Debug("position.live.write.fail", "deviceId", claims.DeviceID, "err", err)
				return
			}
		}
	}
}

func writeFix(ctx context.Context, conn *websocket.Conn, p Position, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wsjson.Write(ctx, conn, p)
}
