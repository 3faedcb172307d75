package auth

import "time"

// RefreshSession is a persisted refresh token id. Sessions only exist when
// refresh rotation is enabled.
type RefreshSession struct {
	ID        string    `db:"jti"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Pair is the token pair returned by login, register and refresh.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
