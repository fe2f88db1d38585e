package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

const profileKeyPrefix = "profile:"

const DefaultTTL = 10 * time.Minute

type UserRepository interface {
	GetProfilesByIDs(ctx context.Context, ids []domain.PlayerID) ([]domain.Profile, error)
}

type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Resolver expands player ids into profiles, reading through an optional cache.
type Resolver struct {
	repo  UserRepository
	cache CacheRepository // Optional, can be nil
	ttl   time.Duration
}

func NewResolver(repo UserRepository, cache CacheRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{repo: repo, cache: cache, ttl: ttl}
}

// Profiles returns the known profiles among ids. Unknown ids are simply absent.
func (r *Resolver) Profiles(ctx context.Context, ids []domain.PlayerID) (map[domain.PlayerID]domain.Profile, error) {
	out := make(map[domain.PlayerID]domain.Profile, len(ids))
	missing := make([]domain.PlayerID, 0, len(ids))

	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if p, ok := r.fromCache(ctx, id); ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 || r.repo == nil {
		return out, nil
	}

	found, err := r.repo.GetProfilesByIDs(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("failed to load profiles: %w", err)
	}
	for _, p := range found {
		out[p.ID] = p
		r.toCache(ctx, p)
	}
	return out, nil
}

// Invalidate drops cached profiles so the next lookup hits the repository.
func (r *Resolver) Invalidate(ctx context.Context, ids ...domain.PlayerID) error {
	if r.cache == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, profileKeyPrefix+id.String())
	}
	return r.cache.Del(ctx, keys...)
}

func (r *Resolver) fromCache(ctx context.Context, id domain.PlayerID) (domain.Profile, bool) {
	var p domain.Profile
	if r.cache == nil {
		return p, false
	}
	raw, err := r.cache.Get(ctx, profileKeyPrefix+id.String())
	if err != nil || raw == "" {
		return p, false
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Warn().Err(err).Str("component", "profile").Str("user", id.String()).Msg("dropping corrupt cached profile")
		_ = r.cache.Del(ctx, profileKeyPrefix+id.String())
		return p, false
	}
	return p, true
}

func (r *Resolver) toCache(ctx context.Context, p domain.Profile) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, profileKeyPrefix+p.ID.String(), string(data), r.ttl); err != nil {
		log.Warn().Err(err).Str("component", "profile").Msg("failed to cache profile")
	}
}
