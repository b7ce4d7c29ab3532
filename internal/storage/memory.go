package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// MemoryStore is the arena-backed implementation: maps keyed by id with
// an insertion sequence so due-post queries have a stable tie-break for
// identical scheduled_at values.
type MemoryStore struct {
	mu sync.RWMutex

	posts     map[string]*models.ScheduledPost
	postSeq   map[string]int64
	campaigns map[string]*models.SocialCampaign
	accounts  map[int64]*models.SocialAccount

	nextSeq     int64
	nextAccount int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:     make(map[string]*models.ScheduledPost),
		postSeq:   make(map[string]int64),
		campaigns: make(map[string]*models.SocialCampaign),
		accounts:  make(map[int64]*models.SocialAccount),
	}
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (*models.ScheduledPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (s *MemoryStore) SavePost(ctx context.Context, post *models.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postSeq[post.ID]; !ok {
		s.nextSeq++
		s.postSeq[post.ID] = s.nextSeq
	}
	post.UpdatedAt = time.Now()
	copied := *post
	s.posts[post.ID] = &copied
	return nil
}

func (s *MemoryStore) ListPostsByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []*models.ScheduledPost
	for _, post := range s.posts {
		if post.UserID == userID {
			copied := *post
			posts = append(posts, &copied)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return s.postSeq[posts[i].ID] < s.postSeq[posts[j].ID]
	})
	return posts, nil
}

func (s *MemoryStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.ScheduledPost
	for _, post := range s.posts {
		if post.Status == models.PostStatusScheduled && !post.ScheduledAt.After(now) {
			copied := *post
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return s.postSeq[due[i].ID] < s.postSeq[due[j].ID]
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) ListPublishingPosts(ctx context.Context) ([]*models.ScheduledPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var publishing []*models.ScheduledPost
	for _, post := range s.posts {
		if post.Status == models.PostStatusPublishing {
			copied := *post
			publishing = append(publishing, &copied)
		}
	}
	sort.Slice(publishing, func(i, j int) bool {
		return s.postSeq[publishing[i].ID] < s.postSeq[publishing[j].ID]
	})
	return publishing, nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.posts, id)
	delete(s.postSeq, id)
	return nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*models.SocialCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, nil
	}
	copied := *campaign
	copied.PostIDs = append([]string(nil), campaign.PostIDs...)
	return &copied, nil
}

func (s *MemoryStore) SaveCampaign(ctx context.Context, campaign *models.SocialCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign.UpdatedAt = time.Now()
	copied := *campaign
	copied.PostIDs = append([]string(nil), campaign.PostIDs...)
	s.campaigns[campaign.ID] = &copied
	return nil
}

func (s *MemoryStore) ListCampaignsByUserID(ctx context.Context, userID int64) ([]*models.SocialCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var campaigns []*models.SocialCampaign
	for _, campaign := range s.campaigns {
		if campaign.UserID == userID {
			copied := *campaign
			copied.PostIDs = append([]string(nil), campaign.PostIDs...)
			campaigns = append(campaigns, &copied)
		}
	}
	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.Before(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (s *MemoryStore) DeleteCampaign(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.campaigns, id)
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id int64) (*models.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *acc
	return &copied, nil
}

func (s *MemoryStore) SaveAccount(ctx context.Context, acc *models.SocialAccount) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.ID == 0 {
		s.nextAccount++
		acc.ID = s.nextAccount
	} else if acc.ID > s.nextAccount {
		s.nextAccount = acc.ID
	}
	acc.UpdatedAt = time.Now()
	copied := *acc
	s.accounts[acc.ID] = &copied
	return acc.ID, nil
}

func (s *MemoryStore) ListAccountsByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.SocialAccount
	for _, acc := range s.accounts {
		if acc.UserID == userID {
			copied := *acc
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

func (s *MemoryStore) ListAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.SocialAccount
	for _, acc := range s.accounts {
		if acc.TokenExpiresAt.IsZero() {
			continue
		}
		if !acc.TokenExpiresAt.Before(from) && !acc.TokenExpiresAt.After(to) {
			copied := *acc
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, id)
	return nil
}
