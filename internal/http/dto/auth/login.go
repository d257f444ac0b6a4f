package auth

// LoginRequest represents the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned when a session is issued (login, signup verify).
// Tokens go in the at/lst cookies; the body only carries the user id the client
// must echo in the user id header.
type SessionResponse struct {
	UID string `json:"uid"`
}

// MessageResponse is the generic success body.
type MessageResponse struct {
	Message string `json:"message"`
}
