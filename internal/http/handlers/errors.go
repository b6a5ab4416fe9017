package handlers

// Error codes carried in the `code` field of every error envelope. Clients
// branch on the code; the `error` text is for humans and may change.
//
//	{"error": "zip request not found", "code": "not_found", "request_id": "e1b9be03-..."}
const (
	ErrCodeBadRequest       = "bad_request"        // 400, malformed body or path param
	ErrCodeValidation       = "validation_error"   // 400, well-formed but rejected by a service
	ErrCodeUnauthorized     = "unauthorized"       // 401
	ErrCodeNotFound         = "not_found"          // 404
	ErrCodeMethodNotAllowed = "method_not_allowed" // 405
	ErrCodeConflict         = "conflict"           // 409
	ErrCodeInternal         = "internal_error"     // 5xx
)
