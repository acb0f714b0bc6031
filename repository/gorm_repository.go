package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/vocalcoach/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Call{},
		&models.Report{},
		&models.UserStats{},
		&models.VoiceDiagnosis{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// ConsumeCredit atomically deducts one credit from the user. The guard on
// the UPDATE keeps the balance from going negative when requests race; the
// returned bool reports whether a credit was actually deducted.
func (r *GORMRepository) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credits > 0", userID).
		UpdateColumn("credits", gorm.Expr("credits - 1"))
	if result.Error != nil {
		slog.Error("Failed to consume credit", "error", result.Error, "user_id", userID)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GrantPremium marks the user premium until expiry and adds bonus credits.
// Expiry is replaced, not extended, so repeated purchases are not cumulative.
func (r *GORMRepository) GrantPremium(ctx context.Context, userID string, expiry time.Time, bonusCredits int) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_premium":     true,
			"premium_expiry": expiry,
			"credits":        gorm.Expr("credits + ?", bonusCredits),
		})
	if result.Error != nil {
		slog.Error("Failed to grant premium", "error", result.Error, "user_id", userID)
		return result.Error
	}
	slog.Info("Premium granted", "user_id", userID, "expiry", expiry, "bonus_credits", bonusCredits)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Diagnosis operations
func (r *GORMRepository) CreateVoiceDiagnosis(ctx context.Context, diagnosis *models.VoiceDiagnosis) error {
	if err := r.db.WithContext(ctx).Create(diagnosis).Error; err != nil {
		slog.Error("Failed to create voice diagnosis", "error", err)
		return err
	}
	slog.Info("Voice diagnosis created", "diagnosis_id", diagnosis.ID, "user_id", diagnosis.UserID)
	return nil
}

func (r *GORMRepository) GetVoiceDiagnoses(ctx context.Context, userID string) ([]models.VoiceDiagnosis, error) {
	var diagnoses []models.VoiceDiagnosis
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&diagnoses).Error
	if err != nil {
		slog.Error("Failed to get voice diagnoses", "error", err, "user_id", userID)
		return nil, err
	}
	return diagnoses, nil
}
