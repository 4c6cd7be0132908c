package authapi

// Field names follow the wire contract consumed by existing device clients
// (camelCase, flat objects, an "ok" flag on every response).

type deviceRequest struct {
	Email    string `json:"email"`
	DeviceID string `json:"deviceId"`
}

type deviceResponse struct {
	OK           bool   `json:"ok"`
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	DeviceID     string `json:"deviceId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	OK          bool   `json:"ok"`
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}

type verifyResponse struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	DeviceID string `json:"deviceId"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
