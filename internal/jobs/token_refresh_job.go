package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/accounts"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/storage"
)

// TokenRefreshJob refreshes access tokens that expire inside the next
// half hour, so the publish path rarely hits an expired token.
type TokenRefreshJob struct {
	store    storage.AccountStore
	accounts accounts.Service
}

func NewTokenRefreshJob(store storage.AccountStore, accountService accounts.Service) *TokenRefreshJob {
	return &TokenRefreshJob{
		store:    store,
		accounts: accountService,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	expiring, err := j.store.ListAccountsExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range expiring {
		if acc.RefreshToken == "" {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := j.accounts.RefreshAccountToken(ctx, acc); err != nil {
				slog.Info("unable to refresh tokens for " + acc.Platform)
			}
		}(acc)
	}

	wg.Wait()
}
