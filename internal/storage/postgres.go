package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

// PostgresStore implements Store on database/sql. The posts table
// carries a bigserial seq column so the due-post query preserves
// insertion order for identical scheduled_at values.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const postColumns = `id, user_id, account_id, platform, content, scheduled_at, status,
	retry_count, platform_post_id, platform_post_url, campaign_id, recurrence,
	recurrence_end_date, error_message, published_at, created_at, updated_at`

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (s *PostgresStore) SavePost(ctx context.Context, post *models.ScheduledPost) error {
	content, err := json.Marshal(post.Content)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduled_posts (id, user_id, account_id, platform, content, scheduled_at,
			status, retry_count, platform_post_id, platform_post_url, campaign_id, recurrence,
			recurrence_end_date, error_message, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			scheduled_at = EXCLUDED.scheduled_at,
			status = EXCLUDED.status,
			retry_count = EXCLUDED.retry_count,
			platform_post_id = EXCLUDED.platform_post_id,
			platform_post_url = EXCLUDED.platform_post_url,
			error_message = EXCLUDED.error_message,
			published_at = EXCLUDED.published_at,
			updated_at = EXCLUDED.updated_at
	`

	post.UpdatedAt = time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = post.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, query,
		post.ID, post.UserID, post.AccountID, post.Platform, content, post.ScheduledAt,
		string(post.Status), post.RetryCount, post.PlatformPostID, post.PlatformPostURL,
		nullString(post.CampaignID), string(post.Recurrence), nullTime(post.RecurrenceEndDate),
		post.ErrorMessage, nullTime(post.PublishedAt), post.CreatedAt, post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) ListPostsByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (s *PostgresStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at, seq
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, string(models.PostStatusScheduled), now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (s *PostgresStore) ListPublishingPosts(ctx context.Context) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = $1
		ORDER BY scheduled_at, seq`
	rows, err := s.db.QueryContext(ctx, query, string(models.PostStatusPublishing))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*models.SocialCampaign, error) {
	query := `SELECT id, user_id, name, content, platform_configs, scheduled_at, status,
		post_ids, recurrence, recurrence_end_date, completed_at, created_at, updated_at
		FROM social_campaigns WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	campaign, err := scanCampaign(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return campaign, nil
}

func (s *PostgresStore) SaveCampaign(ctx context.Context, campaign *models.SocialCampaign) error {
	content, err := json.Marshal(campaign.Content)
	if err != nil {
		return err
	}
	configs, err := json.Marshal(campaign.PlatformConfigs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO social_campaigns (id, user_id, name, content, platform_configs,
			scheduled_at, status, post_ids, recurrence, recurrence_end_date, completed_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content = EXCLUDED.content,
			platform_configs = EXCLUDED.platform_configs,
			scheduled_at = EXCLUDED.scheduled_at,
			status = EXCLUDED.status,
			post_ids = EXCLUDED.post_ids,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	campaign.UpdatedAt = time.Now()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = campaign.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, query,
		campaign.ID, campaign.UserID, campaign.Name, content, configs,
		campaign.ScheduledAt, string(campaign.Status), pq.Array(campaign.PostIDs),
		string(campaign.Recurrence), nullTime(campaign.RecurrenceEndDate),
		nullTime(campaign.CompletedAt), campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) ListCampaignsByUserID(ctx context.Context, userID int64) ([]*models.SocialCampaign, error) {
	query := `SELECT id, user_id, name, content, platform_configs, scheduled_at, status,
		post_ids, recurrence, recurrence_end_date, completed_at, created_at, updated_at
		FROM social_campaigns WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var campaigns []*models.SocialCampaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

func (s *PostgresStore) DeleteCampaign(ctx context.Context, id string) error {
	query := `DELETE FROM social_campaigns WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := accountSelect + ` WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	acc, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *models.SocialAccount) (int64, error) {
	acc.UpdatedAt = time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = acc.UpdatedAt
	}

	if acc.ID == 0 {
		query := `
			INSERT INTO social_accounts (user_id, platform, account_id, account_name,
				account_username, profile_picture_url, access_token, refresh_token,
				token_expires_at, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`
		var id int64
		err := s.db.QueryRowContext(ctx, query,
			acc.UserID, acc.Platform, acc.AccountID, acc.AccountName, acc.AccountUsername,
			acc.ProfilePicture, acc.AccessToken, acc.RefreshToken, acc.TokenExpiresAt,
			acc.IsActive, acc.CreatedAt, acc.UpdatedAt).Scan(&id)
		if err != nil {
			slog.Info(err.Error())
			return 0, err
		}
		acc.ID = id
		return id, nil
	}

	query := `
		UPDATE social_accounts
		SET account_name = $1,
			account_username = $2,
			profile_picture_url = $3,
			access_token = $4,
			refresh_token = $5,
			token_expires_at = $6,
			is_active = $7,
			updated_at = $8
		WHERE id = $9
	`
	_, err := s.db.ExecContext(ctx, query,
		acc.AccountName, acc.AccountUsername, acc.ProfilePicture, acc.AccessToken,
		acc.RefreshToken, acc.TokenExpiresAt, acc.IsActive, acc.UpdatedAt, acc.ID)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return acc.ID, nil
}

func (s *PostgresStore) ListAccountsByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := accountSelect + ` WHERE user_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (s *PostgresStore) ListAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	query := accountSelect + ` WHERE token_expires_at BETWEEN $1 AND $2 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

const accountSelect = `SELECT id, user_id, platform, account_id, account_name,
	account_username, profile_picture_url, access_token, refresh_token,
	token_expires_at, is_active, created_at, updated_at FROM social_accounts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var content []byte
	var campaignID, platformPostID, platformPostURL, errorMessage sql.NullString
	var recurrenceEnd, publishedAt sql.NullTime
	var status, recurrence string

	err := row.Scan(&post.ID, &post.UserID, &post.AccountID, &post.Platform, &content,
		&post.ScheduledAt, &status, &post.RetryCount, &platformPostID, &platformPostURL,
		&campaignID, &recurrence, &recurrenceEnd, &errorMessage, &publishedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &post.Content); err != nil {
		return nil, err
	}
	post.Status = models.PostStatus(status)
	post.Recurrence = models.Recurrence(recurrence)
	post.PlatformPostID = platformPostID.String
	post.PlatformPostURL = platformPostURL.String
	post.CampaignID = campaignID.String
	post.ErrorMessage = errorMessage.String
	if recurrenceEnd.Valid {
		post.RecurrenceEndDate = &recurrenceEnd.Time
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanCampaign(row rowScanner) (*models.SocialCampaign, error) {
	var campaign models.SocialCampaign
	var content, configs []byte
	var recurrenceEnd, completedAt sql.NullTime
	var status, recurrence string

	err := row.Scan(&campaign.ID, &campaign.UserID, &campaign.Name, &content, &configs,
		&campaign.ScheduledAt, &status, pq.Array(&campaign.PostIDs), &recurrence,
		&recurrenceEnd, &completedAt, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &campaign.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(configs, &campaign.PlatformConfigs); err != nil {
		return nil, err
	}
	campaign.Status = models.CampaignStatus(status)
	campaign.Recurrence = models.Recurrence(recurrence)
	if recurrenceEnd.Valid {
		campaign.RecurrenceEndDate = &recurrenceEnd.Time
	}
	if completedAt.Valid {
		campaign.CompletedAt = &completedAt.Time
	}
	return &campaign, nil
}

func collectAccounts(rows *sql.Rows) ([]*models.SocialAccount, error) {
	var accounts []*models.SocialAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func scanAccount(row rowScanner) (*models.SocialAccount, error) {
	var acc models.SocialAccount
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Platform, &acc.AccountID, &acc.AccountName,
		&acc.AccountUsername, &acc.ProfilePicture, &acc.AccessToken, &acc.RefreshToken,
		&acc.TokenExpiresAt, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
