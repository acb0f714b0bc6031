package repository

import (
	"context"
	"log/slog"

	"github.com/vocalcoach/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Call operations. The sync poller is authoritative for call metadata;
// everything here is keyed on the provider's external call id.

// UpsertCall inserts the call or refreshes its metadata when a row with the
// same external id already exists. Re-running a sync with identical upstream
// data is a no-op beyond field refresh.
func (r *GORMRepository) UpsertCall(ctx context.Context, call *models.Call) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"duration", "recording_url", "cost", "started_at", "updated_at"}),
	}).Create(call).Error
	if err != nil {
		slog.Error("Failed to upsert call", "error", err, "external_id", call.ExternalID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetCallByExternalID(ctx context.Context, externalID string) (*models.Call, error) {
	var call models.Call
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&call).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get call", "error", err, "external_id", externalID)
		return nil, err
	}
	return &call, nil
}

func (r *GORMRepository) GetCallsForUser(ctx context.Context, userID string) ([]models.Call, error) {
	var calls []models.Call
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC").Find(&calls).Error
	if err != nil {
		slog.Error("Failed to get calls", "error", err, "user_id", userID)
		return nil, err
	}
	return calls, nil
}

// AttachCallToUser associates a user with a call id. When the poller has not
// synced the call yet a stub row is created; the next sync fills in metadata.
func (r *GORMRepository) AttachCallToUser(ctx context.Context, externalID, userID string) (*models.Call, error) {
	call, err := r.GetCallByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		call = &models.Call{ExternalID: externalID, UserID: &userID}
		if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
			slog.Error("Failed to create call stub", "error", err, "external_id", externalID)
			return nil, err
		}
		slog.Info("Call stub created for user", "external_id", externalID, "user_id", userID)
		return call, nil
	}

	call.UserID = &userID
	if err := r.db.WithContext(ctx).Save(call).Error; err != nil {
		slog.Error("Failed to attach call to user", "error", err, "external_id", externalID, "user_id", userID)
		return nil, err
	}
	return call, nil
}

// Report operations

// CreateReport persists the report and returns the surviving row. When a
// concurrent request already persisted a report for the same call, the
// unique index rejects the insert and the existing report is returned
// instead, so at most one row per call survives the race.
func (r *GORMRepository) CreateReport(ctx context.Context, report *models.Report) (*models.Report, error) {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		existing, lookupErr := r.GetReportByCallID(ctx, report.CallID)
		if lookupErr == nil && existing != nil {
			slog.Info("Report already persisted by concurrent request", "call_id", report.CallID, "report_id", existing.ID)
			return existing, nil
		}
		slog.Error("Failed to create report", "error", err, "call_id", report.CallID)
		return nil, err
	}
	slog.Info("Report created", "report_id", report.ID, "call_id", report.CallID)
	return report, nil
}

func (r *GORMRepository) GetReportByCallID(ctx context.Context, callID string) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&report).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get report", "error", err, "call_id", callID)
		return nil, err
	}
	return &report, nil
}
