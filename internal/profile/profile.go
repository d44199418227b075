package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/models"
)

var ErrEmptyNickname = errors.New("nickname must not be empty")

// MaxNicknameLength bounds a display name, counted in runes
const MaxNicknameLength = 64

// Service reads and updates display names through a read-through cache
type Service struct {
	store  models.ProfileStore
	cache  *expirable.LRU[string, string]
	logger zerolog.Logger
}

// NewService creates a profile service caching up to size names for ttl
func NewService(store models.ProfileStore, size int, ttl time.Duration) *Service {
	if size <= 0 {
		size = 1024
	}
	return &Service{
		store:  store,
		cache:  expirable.NewLRU[string, string](size, nil, ttl),
		logger: log.With().Str("component", "profile").Logger(),
	}
}

// Nickname returns the display name of userID, "" when none is set
func (s *Service) Nickname(ctx context.Context, userID string) (string, error) {
	if name, ok := s.cache.Get(userID); ok {
		return name, nil
	}

	name, err := s.store.Nickname(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load nickname")
		return "", fmt.Errorf("load nickname: %w", err)
	}

	s.cache.Add(userID, name)
	return name, nil
}

// UpdateNickname trims and stores a new display name
func (s *Service) UpdateNickname(ctx context.Context, userID, nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", ErrEmptyNickname
	}
	if r := []rune(nickname); len(r) > MaxNicknameLength {
		nickname = string(r[:MaxNicknameLength])
	}

	if err := s.store.UpdateNickname(ctx, userID, nickname); err != nil {
		s.cache.Remove(userID)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to update nickname")
		return "", fmt.Errorf("update nickname: %w", err)
	}

	s.cache.Add(userID, nickname)
	s.logger.Info().Str("user_id", userID).Msg("Nickname updated")
	return nickname, nil
}

// Forget drops everything cached for userID. Called on sign-out.
func (s *Service) Forget(userID string) {
	s.cache.Remove(userID)
}
