package repository

import (
	"context"
	"log/slog"

	"github.com/vocalcoach/backend/models"
	"gorm.io/gorm"
)

// GetOrCreateUserStats loads the user's gamification state, creating an
// all-zero record on first access.
func (r *GORMRepository) GetOrCreateUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if err == nil {
		return &stats, nil
	}
	if err != gorm.ErrRecordNotFound {
		slog.Error("Failed to get user stats", "error", err, "user_id", userID)
		return nil, err
	}

	stats = models.UserStats{UserID: userID, CompletedToday: []string{}}
	if err := r.db.WithContext(ctx).Create(&stats).Error; err != nil {
		slog.Error("Failed to create user stats", "error", err, "user_id", userID)
		return nil, err
	}
	slog.Info("User stats created", "user_id", userID)
	return &stats, nil
}

func (r *GORMRepository) SaveUserStats(ctx context.Context, stats *models.UserStats) error {
	if err := r.db.WithContext(ctx).Save(stats).Error; err != nil {
		slog.Error("Failed to save user stats", "error", err, "user_id", stats.UserID)
		return err
	}
	return nil
}

// TopUsersByPoints returns up to limit users ordered by total points. Used
// as the leaderboard fallback when Redis is not configured.
func (r *GORMRepository) TopUsersByPoints(ctx context.Context, limit int) ([]models.UserStats, error) {
	var stats []models.UserStats
	err := r.db.WithContext(ctx).Order("total_points DESC").Limit(limit).Find(&stats).Error
	if err != nil {
		slog.Error("Failed to get top users by points", "error", err)
		return nil, err
	}
	return stats, nil
}
