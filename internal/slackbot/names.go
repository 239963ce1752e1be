package slackbot

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	nameCacheTTL     = 5 * time.Minute
	nameCacheEntries = 4096
	unknownUser      = "Unknown user"
)

// NameCache resolves Slack user IDs to display names.
type NameCache struct {
	api    SlackAPI
	cache  *expirable.LRU[string, string]
	logger zerolog.Logger
}

// NewNameCache creates a NameCache. Lookups are cached for five minutes.
func NewNameCache(api SlackAPI, logger zerolog.Logger) *NameCache {
	return &NameCache{
		api:    api,
		cache:  expirable.NewLRU[string, string](nameCacheEntries, nil, nameCacheTTL),
		logger: logger,
	}
}

// Name returns the best display name for userID. Failed lookups are not
// cached and return "Unknown user".
func (n *NameCache) Name(ctx context.Context, userID string) string {
	if name, ok := n.cache.Get(userID); ok {
		return name
	}

	user, err := n.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		n.logger.Debug().Err(err).Str("user", userID).Msg("Failed to look up display name")
		return unknownUser
	}

	var name string
	for _, candidate := range []string{
		user.Profile.DisplayNameNormalized,
		user.Profile.RealNameNormalized,
		user.RealName,
		user.Name,
	} {
		if candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "@"); candidate != "" {
			name = candidate
			break
		}
	}
	if name == "" {
		name = unknownUser
	}

	n.cache.Add(userID, name)
	return name
}
