package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:points"

// LeaderboardService mirrors total points into a Redis sorted set so the
// leaderboard can be served without scanning the stats table.
type LeaderboardService struct {
	rdb *redis.Client
}

type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Rank   int    `json:"rank"`
}

func NewLeaderboardService(redisURL string) *LeaderboardService {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		return nil
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		return nil
	}

	return &LeaderboardService{rdb: rdb}
}

// RecordPoints stores the user's authoritative point total. The database
// remains the source of truth; the sorted set is a read-optimized mirror.
func (l *LeaderboardService) RecordPoints(ctx context.Context, userID string, totalPoints int) error {
	err := l.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(totalPoints),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record points: %w", err)
	}
	return nil
}

// Top returns the highest-scoring users, best first.
func (l *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	results, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, z := range results {
		userID, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			UserID: userID,
			Points: int(z.Score),
			Rank:   i + 1,
		})
	}
	return entries, nil
}

func (l *LeaderboardService) Close() error {
	return l.rdb.Close()
}
