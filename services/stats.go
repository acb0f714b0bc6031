package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

// ExerciseCatalog is the fixed set of daily exercises. Streak and points
// only move when every id in this set has been completed on a single day.
var ExerciseCatalog = []string{
	// Breathing
	"box-breathing",
	"diaphragmatic-breathing",
	"humming-breath",
	// Pitch
	"pitch-slides",
	"pitch-scales",
	"siren-pitch",
	// Articulation
	"tongue-twisters",
	"lip-trills",
	"jaw-release",
}

const (
	DailyBonusPoints = 10
	dateLayout       = "2006-01-02"
)

var ErrInvalidExercise = errors.New("invalid exercise id")

// StatsService owns the streak/points state machine.
type StatsService struct {
	repo        *repository.GORMRepository
	leaderboard *LeaderboardService
}

func NewStatsService(repo *repository.GORMRepository, leaderboard *LeaderboardService) *StatsService {
	return &StatsService{
		repo:        repo,
		leaderboard: leaderboard,
	}
}

// StatsSnapshot is the view of a user's gamification state returned to the UI.
type StatsSnapshot struct {
	Streak            int      `json:"streak"`
	TotalPoints       int      `json:"total_points"`
	LastCompletedDate string   `json:"last_completed_date,omitempty"`
	CompletedToday    []string `json:"completed_today"`
	CatalogSize       int      `json:"catalog_size"`
}

// CompleteResult describes the outcome of one exercise completion.
type CompleteResult struct {
	Stats           StatsSnapshot `json:"stats"`
	AllCompleted    bool          `json:"all_completed"`
	PointsEarned    int           `json:"points_earned"`
	StreakRestarted bool          `json:"streak_restarted"`
	Message         string        `json:"message"`
}

// rolloverDay resets the daily completion set when the stored day no longer
// matches today and strips duplicate ids. Pure function of its inputs;
// callers decide what "today" is. Returns whether anything changed.
func rolloverDay(stats *models.UserStats, today string) bool {
	changed := false
	if stats.LastExerciseDate != today {
		stats.CompletedToday = []string{}
		stats.LastExerciseDate = today
		changed = true
	}
	deduped := dedupe(stats.CompletedToday)
	if len(deduped) != len(stats.CompletedToday) {
		changed = true
	}
	stats.CompletedToday = deduped
	return changed
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func isCatalogComplete(completed []string) bool {
	for _, id := range ExerciseCatalog {
		if !contains(completed, id) {
			return false
		}
	}
	return true
}

func snapshot(stats *models.UserStats) StatsSnapshot {
	return StatsSnapshot{
		Streak:            stats.Streak,
		TotalPoints:       stats.TotalPoints,
		LastCompletedDate: stats.LastCompletedDate,
		CompletedToday:    stats.CompletedToday,
		CatalogSize:       len(ExerciseCatalog),
	}
}

// GetStats loads (or lazily creates) the user's stats, applying the day
// rollover before returning them.
func (s *StatsService) GetStats(ctx context.Context, userID string, now time.Time) (*StatsSnapshot, error) {
	stats, err := s.repo.GetOrCreateUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}

	today := now.Format(dateLayout)
	if rolloverDay(stats, today) {
		if err := s.repo.SaveUserStats(ctx, stats); err != nil {
			return nil, fmt.Errorf("failed to save user stats: %w", err)
		}
	}

	result := snapshot(stats)
	return &result, nil
}

// CompleteExercise records one exercise completion and, when the full
// catalog is done for the day, awards the daily bonus and adjusts the streak.
// The completion set is persisted before the award step so a crash between
// the two saves can only delay the bonus, never lose the completion.
func (s *StatsService) CompleteExercise(ctx context.Context, userID, exerciseID string, now time.Time) (*CompleteResult, error) {
	if !contains(ExerciseCatalog, exerciseID) {
		return nil, ErrInvalidExercise
	}

	stats, err := s.repo.GetOrCreateUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}

	today := now.Format(dateLayout)
	rolloverDay(stats, today)

	// Same-day idempotence: re-completing an exercise never mutates the set.
	if contains(stats.CompletedToday, exerciseID) {
		if err := s.repo.SaveUserStats(ctx, stats); err != nil {
			return nil, fmt.Errorf("failed to save user stats: %w", err)
		}
		return &CompleteResult{
			Stats:        snapshot(stats),
			AllCompleted: isCatalogComplete(stats.CompletedToday),
			Message:      "already completed today",
		}, nil
	}

	stats.CompletedToday = append(stats.CompletedToday, exerciseID)
	if err := s.repo.SaveUserStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save user stats: %w", err)
	}

	if !isCatalogComplete(stats.CompletedToday) {
		return &CompleteResult{
			Stats:   snapshot(stats),
			Message: fmt.Sprintf("%d of %d exercises completed today", len(stats.CompletedToday), len(ExerciseCatalog)),
		}, nil
	}

	// The full-set bonus is awarded at most once per day, gated on the last
	// full-completion date rather than on the add-to-set step above.
	if stats.LastCompletedDate == today {
		return &CompleteResult{
			Stats:        snapshot(stats),
			AllCompleted: true,
			Message:      "already completed today",
		}, nil
	}

	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	streakRestarted := false
	switch stats.LastCompletedDate {
	case "":
		stats.Streak = 1
	case yesterday:
		stats.Streak++
	default:
		stats.Streak = 1
		streakRestarted = true
	}

	stats.TotalPoints += DailyBonusPoints
	stats.LastCompletedDate = today
	if err := s.repo.SaveUserStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save user stats: %w", err)
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.RecordPoints(ctx, userID, stats.TotalPoints); err != nil {
			slog.Error("Failed to update leaderboard", "error", err, "user_id", userID)
		}
	}

	slog.Info("Daily exercise set completed",
		"user_id", userID,
		"streak", stats.Streak,
		"total_points", stats.TotalPoints,
		"streak_restarted", streakRestarted)

	return &CompleteResult{
		Stats:           snapshot(stats),
		AllCompleted:    true,
		PointsEarned:    DailyBonusPoints,
		StreakRestarted: streakRestarted,
		Message:         fmt.Sprintf("All %d exercises completed! You earned %d points.", len(ExerciseCatalog), DailyBonusPoints),
	}, nil
}
