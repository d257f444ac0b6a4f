package auth

// RecoveryRequest represents the request body for POST /auth/recovery
type RecoveryRequest struct {
	Email string `json:"email"`
}

// ResetRequest represents the request body for POST /auth/recovery/reset
type ResetRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest represents the request body for POST /auth/password
type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}
