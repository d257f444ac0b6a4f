package auth

// SignupRequest represents the request body for POST /auth/signup
type SignupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// VerifyRequest is the body for POST /auth/signup/verify and /auth/recovery/verify.
// The stage tokens travel as cookies, never in the body.
type VerifyRequest struct {
	OTP string `json:"otp"`
}
