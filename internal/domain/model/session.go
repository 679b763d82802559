package model

import "time"

// Session is the authentication state of a Telegram user.
type Session struct {
	TelegramID int64     `json:"telegram_id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Token      string    `json:"token"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewSession(tgID int64, u *User, token string) *Session {
	return &Session{
		TelegramID: tgID,
		UserID:     u.ID,
		Name:       u.DisplayName(),
		Role:       u.EffectiveRole(),
		Token:      token,
		CreatedAt:  time.Now().UTC(),
	}
}

// AccessClaims is the identity carried by an access token.
type AccessClaims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
