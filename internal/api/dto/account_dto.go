package dto

// RegisterAccountRequest is the self-registration payload. Any other field a
// client sends, enabled included, is dropped while decoding.
type RegisterAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse carries a localized status message.
type MessageResponse struct {
	Message string `json:"message"`
}
