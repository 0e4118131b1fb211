package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// The tag index lives in a reserved namespace inside the same remote store
// (tag key -> set of member keys) so it shares the store's failure and
// fallback semantics instead of needing a second connection.
const tagNamespace = "tag"

func (s *Store) tagKey(tag string) string {
	return s.fullKey(tagNamespace + ":" + tag)
}

// addTags registers fullKey under each tag and refreshes the tag set's TTL
// on every tagged write so it lives at least as long as its newest member.
func (s *Store) addTags(ctx context.Context, fullKey string, tags []string, ttl time.Duration) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.client.Pipeline()
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		tagKey := s.tagKey(tag)
		pipe.SAdd(opCtx, tagKey, fullKey)
		// only ever extend: a shorter-lived member must not cut down a
		// longer-lived tag set
		pipe.ExpireGT(opCtx, tagKey, ttl)
		pipe.ExpireNX(opCtx, tagKey, ttl)
	}

	if _, err := pipe.Exec(opCtx); err != nil {
		s.stats.recordError()
		s.logger.Warn("failed to index cache tags", zap.Strings("tags", tags), zap.Error(err))
	}
}

// InvalidateByTags deletes every member key of each tag and then the tag set
// itself. Tags with no members are tolerated as no-ops. Returns the number
// of member keys deleted.
func (s *Store) InvalidateByTags(ctx context.Context, tags ...string) int {
	deleted := 0

	for _, tag := range tags {
		if tag == "" {
			continue
		}

		tagKey := s.tagKey(tag)

		opCtx, cancel := s.opCtx(ctx)
		members, err := s.client.SMembers(opCtx, tagKey).Result()
		cancel()

		if err != nil {
			s.stats.recordError()
			s.noteRemoteFailure(err)
			continue
		}

		if len(members) > 0 {
			s.fallback.deleteAll(members)

			opCtx, cancel := s.opCtx(ctx)
			n, err := s.client.Del(opCtx, members...).Result()
			cancel()

			if err != nil {
				s.stats.recordError()
			} else {
				deleted += int(n)
				for range members {
					s.stats.recordDelete()
				}
			}
		}

		opCtx, cancel = s.opCtx(ctx)
		if err := s.client.Del(opCtx, tagKey).Err(); err != nil {
			s.stats.recordError()
		}
		cancel()

		s.logger.Debug("invalidated tag", zap.String("tag", tag), zap.Int("members", len(members)))
	}

	return deleted
}
