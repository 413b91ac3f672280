package dto

// TokenRequest exchanges the operator passphrase for a JWT.
type TokenRequest struct {
	OperatorID string `json:"operator_id"`
	Passphrase string `json:"passphrase"`
	Tier       string `json:"tier"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// SnippetRequest creates or updates a snippet.
type SnippetRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// BlacklistRequest blacklists a user.
type BlacklistRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}
