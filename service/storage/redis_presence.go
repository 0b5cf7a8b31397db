package storage

import (
	"context"
	"sort"
	"time"

	"PChat/tools/errs"

	"github.com/redis/go-redis/v9"
)

// presence key: chat:presence:<node>
// Value: set of user ids connected to that node. The TTL bounds how long a
// crashed node's set survives; every broadcast renews it.
func presenceKey(node string) string { return "chat:presence:" + node }

// PresenceMirror copies the online set of one node into redis so other
// processes can read it.
type PresenceMirror struct {
	rdb  redis.UniversalClient
	node string
	ttl  time.Duration
}

func NewPresenceMirror(rdb redis.UniversalClient, node string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PresenceMirror{rdb: rdb, node: node, ttl: ttl}
}

// Replace overwrites the node's set with users in one transaction.
func (m *PresenceMirror) Replace(ctx context.Context, users []string) error {
	key := presenceKey(m.node)
	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(users) > 0 {
		members := make([]any, len(users))
		for i, u := range users {
			members[i] = u
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.WrapMsg(err, "mirror presence", "node", m.node)
	}
	return nil
}

// OnlineUsers returns the mirrored set, sorted.
func (m *PresenceMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	users, err := m.rdb.SMembers(ctx, presenceKey(m.node)).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "read presence", "node", m.node)
	}
	sort.Strings(users)
	return users, nil
}

func (m *PresenceMirror) IsOnline(ctx context.Context, user string) (bool, error) {
	ok, err := m.rdb.SIsMember(ctx, presenceKey(m.node), user).Result()
	if err != nil {
		return false, errs.WrapMsg(err, "read presence", "node", m.node)
	}
	return ok, nil
}
