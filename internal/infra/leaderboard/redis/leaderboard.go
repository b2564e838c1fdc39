// Package redis mirrors the evaluated ranking into Redis: a sorted set scored
// by marks plus a hash of per-student entries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"studentrecords/internal/core"
)

// DefaultKey is the sorted-set key used when none is configured.
const DefaultKey = "studentrecords:leaderboard"

// Entry is the per-student payload stored in the info hash.
type Entry struct {
	StudentID int    `json:"student_id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
	Marks     int    `json:"marks"`
	Status    string `json:"status"`
	Rank      *int   `json:"rank,omitempty"`
}

// Leaderboard publishes rosters to Redis.
type Leaderboard struct {
	client redis.UniversalClient
	key    string
}

// New wraps an existing client. An empty key selects DefaultKey.
func New(client redis.UniversalClient, key string) *Leaderboard {
	if key == "" {
		key = DefaultKey
	}
	return &Leaderboard{client: client, key: key}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, key string) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, key), nil
}

// Name implements core.RosterSink.
func (l *Leaderboard) Name() string { return "redis_leaderboard" }

// Close releases the client.
func (l *Leaderboard) Close() error { return l.client.Close() }

func (l *Leaderboard) infoKey() string { return l.key + ":info" }

// Publish atomically replaces the leaderboard with the ranked members of
// roster. Unranked students are stored in the info hash only.
func (l *Leaderboard) Publish(ctx context.Context, roster []core.StudentRecord) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, l.key, l.infoKey())

	members := make([]redis.Z, 0, len(roster))
	info := make(map[string]any, len(roster))
	for _, r := range roster {
		member := strconv.Itoa(r.ID)
		raw, err := json.Marshal(Entry{
			StudentID: r.ID,
			Name:      r.Name,
			ClassName: r.ClassName,
			Marks:     r.Marks,
			Status:    string(r.Status),
			Rank:      r.Rank,
		})
		if err != nil {
			return fmt.Errorf("encode student %d: %w", r.ID, err)
		}
		info[member] = raw
		if _, ranked := r.RankValue(); ranked {
			members = append(members, redis.Z{Score: float64(r.Marks), Member: member})
		}
	}
	if len(members) > 0 {
		pipe.ZAdd(ctx, l.key, members...)
	}
	if len(info) > 0 {
		pipe.HSet(ctx, l.infoKey(), info)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}
	return nil
}

// Top returns up to n entries ordered by descending marks.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	ids, err := l.client.ZRevRange(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}
	raw, err := l.client.HMGet(ctx, l.infoKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard entries: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for i, value := range raw {
		text, ok := value.(string)
		if !ok {
			return nil, errors.New("leaderboard entry missing for student " + ids[i])
		}
		var entry Entry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("decode student %s: %w", ids[i], err)
		}
		out = append(out, entry)
	}
	return out, nil
}
