package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recipematch/internal/db"
)

// SAddMulti adds members to several sets in one DoMulti round-trip.
// Items without members are skipped.
func (s *Store) SAddMulti(ctx context.Context, items []db.SetAddItem) error {
	cmds := make([]rueidis.Completed, 0, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if len(item.Members) == 0 {
			continue
		}
		cmds = append(cmds, s.b().Sadd().Key(item.Key).Member(item.Members...).Build())
		keys = append(keys, item.Key)
	}
	if len(cmds) == 0 {
		return nil
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpSAdd, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}

// SMembers returns all members of a set. A missing key yields an empty slice.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.do(ctx, s.b().Smembers().Key(key).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}

// SUnion returns the union of the given sets.
func (s *Store) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	members, err := s.do(ctx, s.b().Sunion().Key(keys...).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSUnion, Err: err}
	}
	return members, nil
}
