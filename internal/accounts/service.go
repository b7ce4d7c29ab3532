package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/pkg/utils"
)

var ErrAccountNotFound = errors.New("social account not found")

// Service is the account/OAuth collaborator: account lookup, ownership
// checks, token decryption for the publish path and per-platform token
// refresh. Tokens are AES-GCM encrypted at rest.
type Service interface {
	GetAccount(ctx context.Context, accountID int64) (*models.SocialAccount, error)
	CheckOwnership(ctx context.Context, accountID, userID int64) (bool, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Remove(ctx context.Context, userID, accountID int64) error
	DecryptTokens(acc *models.SocialAccount) (*models.SocialAccount, error)
	RefreshAccountToken(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error)
}

type service struct {
	cfg      config.Config
	store    storage.AccountStore
	registry *platform.Registry
}

func New(cfg config.Config, store storage.AccountStore, registry *platform.Registry) Service {
	return &service{
		cfg:      cfg,
		store:    store,
		registry: registry,
	}
}

func (s *service) GetAccount(ctx context.Context, accountID int64) (*models.SocialAccount, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (s *service) CheckOwnership(ctx context.Context, accountID, userID int64) (bool, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acc != nil && acc.UserID == userID, nil
}

func (s *service) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.store.ListAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting social accounts")
	}
	return accounts, nil
}

func (s *service) Remove(ctx context.Context, userID, accountID int64) error {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil || acc.UserID != userID {
		err = errors.New("Social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	adapter, err := s.registry.Resolve(acc.Platform)
	if err == nil {
		decrypted, derr := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
		if derr == nil {
			if rerr := adapter.RevokeToken(ctx, decrypted); rerr != nil {
				slog.Info(rerr.Error())
			}
		}
	}

	return s.store.DeleteAccount(ctx, accountID)
}

// DecryptTokens returns a copy of the account with usable plaintext
// tokens. The stored record is never mutated.
func (s *service) DecryptTokens(acc *models.SocialAccount) (*models.SocialAccount, error) {
	decrypted := *acc

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt access token: %w", err)
	}
	decrypted.AccessToken = accessToken

	if acc.RefreshToken != "" {
		refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, fmt.Errorf("unable to decrypt refresh token: %w", err)
		}
		decrypted.RefreshToken = refreshToken
	}
	return &decrypted, nil
}

// RefreshAccountToken refreshes an expired token through the platform
// adapter and writes the re-encrypted pair back to the store. Returns
// the account with plaintext tokens ready for a publish attempt.
func (s *service) RefreshAccountToken(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error) {
	decrypted, err := s.DecryptTokens(acc)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Resolve(acc.Platform)
	if err != nil {
		return nil, err
	}

	pair, err := adapter.RefreshToken(ctx, decrypted.RefreshToken)
	if err != nil {
		return nil, err
	}

	encryptedAccess, err := utils.Encrypt([]byte(pair.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	acc.AccessToken = encryptedAccess

	if pair.RefreshToken != "" {
		encryptedRefresh, err := utils.Encrypt([]byte(pair.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
		acc.RefreshToken = encryptedRefresh
	}
	if pair.ExpiresIn > 0 {
		acc.TokenExpiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}

	if _, err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("error saving refreshed tokens: %w", err)
	}

	decrypted.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		decrypted.RefreshToken = pair.RefreshToken
	}
	decrypted.TokenExpiresAt = acc.TokenExpiresAt
	return decrypted, nil
}
