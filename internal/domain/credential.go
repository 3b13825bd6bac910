package domain

import "time"

// Credential is the stored Google OAuth grant for one VidSage user.
// At most one record exists per UserID; the repository enforces this with a
// unique key and upsert semantics.
type Credential struct {
	ID           int64
	UserID       string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	TokenType    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Refreshable reports whether a new access token can be minted without
// sending the user back through consent.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// ConnectionStatus summarizes a user's Google authorization for the client.
type ConnectionStatus struct {
	Authorized      bool `json:"authorized"`
	HasRefreshToken bool `json:"hasRefreshToken"`
	TokenExpired    bool `json:"tokenExpired"`
}
