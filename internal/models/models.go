package models

import (
	"time"
)

// Batch is one dispatcher run.
type Batch struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind       string    `gorm:"type:varchar(30);not null" json:"kind"`
	State      string    `gorm:"type:varchar(20);not null" json:"state"`
	Source     string    `gorm:"type:varchar(255)" json:"source"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (Batch) TableName() string {
	return "batches"
}

// DispatchLog is one send attempt, written as soon as its result is known.
type DispatchLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BatchID     string    `gorm:"type:varchar(36);index;not null" json:"batch_id"`
	Kind        string    `gorm:"type:varchar(30)" json:"kind"`
	RecipientID string    `gorm:"type:varchar(64);index" json:"recipient_id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	Phone       string    `gorm:"type:varchar(20)" json:"phone"`
	Provider    string    `gorm:"type:varchar(30)" json:"provider"`
	Succeeded   bool      `gorm:"index" json:"succeeded"`
	StatusCode  int       `json:"status_code"`
	MessageID   string    `gorm:"type:varchar(255)" json:"message_id"`
	ErrorKind   string    `gorm:"type:varchar(30)" json:"error_kind,omitempty"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DispatchLog) TableName() string {
	return "dispatch_logs"
}

// Media represents an attachment uploaded for a batch
type Media struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   string    `gorm:"type:varchar(36);index" json:"batch_id"`
	MediaID   string    `gorm:"type:varchar(255);not null" json:"media_id"`
	Provider  string    `gorm:"type:varchar(30)" json:"provider"`
	Filename  string    `gorm:"type:varchar(255)" json:"filename"`
	MimeType  string    `gorm:"type:varchar(100)" json:"mime_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Media) TableName() string {
	return "media"
}
