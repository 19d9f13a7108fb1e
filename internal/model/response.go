package model

// ErrorResponse is the envelope for every error the API returns.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Pagination describes a page of a list endpoint.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// EventList is the envelope for GET /api/v1/webhooks.
type EventList struct {
	Data       []Event    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// TokenList is the envelope for GET /api/v1/tokens.
type TokenList struct {
	Tokens []Token `json:"tokens"`
}

// ActionResult acknowledges a token revoke or delete.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PageCount returns the number of pages needed for total rows at size rows
// per page.
func PageCount(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
