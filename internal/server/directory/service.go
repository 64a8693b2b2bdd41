// Package directory implements the public-key directory: clients publish
// their PEM-encoded public keys by username and fetch peers' keys together
// with a fingerprint for out-of-band verification.
package directory

import (
	"context"
	"strings"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/models"
	"github.com/avelkaya/whisperline/internal/server/repositories/keys"
)

type Service struct {
	repo   keys.Repository
	logger logging.Logger
}

func NewService(repo keys.Repository, l logging.Logger) *Service {
	return &Service{repo: repo, logger: l.With("module", "directory")}
}

// RegisterKey validates and stores key material for a username, replacing
// any previous key, and returns the fingerprint of what was stored. The
// check is deliberately shallow: the material must look like a public-key
// PEM block; clients are the ones who fail hard on unusable keys.
func (s *Service) RegisterKey(ctx context.Context, username, pubPEM string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", common.ErrEmptyUsername
	}
	if len(username) > common.MaxUsernameLen {
		return "", common.ErrUsernameTooLong
	}

	pubPEM = strings.TrimSpace(pubPEM)
	if !strings.Contains(pubPEM, "BEGIN PUBLIC KEY") {
		return "", common.ErrInvalidPublicKey
	}

	if err := s.repo.Upsert(ctx, &models.PublicKey{Username: username, PEM: pubPEM}); err != nil {
		return "", err
	}

	fp := cryptox.Fingerprint(pubPEM)
	s.logger.Info(ctx, "public key registered", "username", username, "fingerprint", fp)
	return fp, nil
}

// PublicKey returns the stored PEM and its fingerprint, or
// common.ErrorNotFound when the username has never registered a key.
func (s *Service) PublicKey(ctx context.Context, username string) (*models.PublicKey, string, error) {
	username = strings.TrimSpace(username)
	key, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, "", err
	}
	return key, cryptox.Fingerprint(key.PEM), nil
}
