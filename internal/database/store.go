package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"parent-messenger/internal/batch"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/models"
)

// LogStore writes every dispatch result to the database. Nothing is ever
// read back into a running batch.
type LogStore struct {
	db *gorm.DB
}

func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// Record implements batch.Recorder.
func (s *LogStore) Record(ctx context.Context, o *batch.Outcome, res dispatch.Result) error {
	entry := models.DispatchLog{
		BatchID:     o.ID.String(),
		Kind:        string(o.Kind),
		RecipientID: res.RecipientID,
		Name:        res.Name,
		Phone:       res.Phone,
		Provider:    res.Provider,
		Succeeded:   res.Succeeded,
		StatusCode:  res.StatusCode,
		MessageID:   res.MessageID,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
		var se *dispatch.SendError
		if errors.As(res.Err, &se) {
			entry.ErrorKind = string(se.Kind)
		}
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

// Finish implements batch.Finisher: it stores the batch summary and the
// shared attachment, if any.
func (s *LogStore) Finish(ctx context.Context, o *batch.Outcome) error {
	row := models.Batch{
		ID:         o.ID.String(),
		Kind:       string(o.Kind),
		State:      string(o.State),
		Source:     o.Source,
		Total:      o.Total,
		Succeeded:  o.Succeeded,
		Failed:     o.Failed,
		Skipped:    len(o.Skipped),
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	if o.Err != nil {
		row.Error = o.Err.Error()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if o.Attachment == nil {
			return nil
		}
		return tx.Create(&models.Media{
			BatchID:  row.ID,
			MediaID:  o.Attachment.ID,
			Provider: o.Attachment.Provider,
			Filename: o.Filename,
			MimeType: o.Attachment.MimeType,
		}).Error
	})
}

// Filter narrows List.
type Filter struct {
	BatchID    string
	FailedOnly bool
	Limit      int
}

// List returns logged sends, newest first.
func (s *LogStore) List(ctx context.Context, f Filter) ([]models.DispatchLog, error) {
	q := s.db.WithContext(ctx).Model(&models.DispatchLog{})
	if f.BatchID != "" {
		q = q.Where("batch_id = ?", f.BatchID)
	}
	if f.FailedOnly {
		q = q.Where("succeeded = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var logs []models.DispatchLog
	if err := q.Order("id desc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Batches returns recent batch summaries, newest first.
func (s *LogStore) Batches(ctx context.Context, limit int) ([]models.Batch, error) {
	q := s.db.WithContext(ctx).Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var batches []models.Batch
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}
