package models

import "context"

type ProfitPredictor interface {
	Predict(ctx context.Context, input PredictionInput) (*Prediction, error)
}

// SessionProvider is the auth collaborator. A nil session with a nil error
// means the token is not signed in.
type SessionProvider interface {
	CurrentSession(ctx context.Context, accessToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type ProfileStore interface {
	Nickname(ctx context.Context, userID string) (string, error)
	UpdateNickname(ctx context.Context, userID, nickname string) error
}
