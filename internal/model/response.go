package model

type ErrorResponse struct {
	Error string `json:"error"`
}

// ExpiredTokenResponse is returned when an access token fails only on expiry,
// so clients know to call refresh instead of dropping to the login screen.
type ExpiredTokenResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	RequiresRefresh bool   `json:"requiresRefresh"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}
