package models

import "time"

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportJob is one archive build, keyed deterministically by chat ID and
// time window so repeated requests for the same window share a key.
type ExportJob struct {
	ID          int64        `db:"id"`
	Key         string       `db:"job_key"`
	ChatID      string       `db:"chat_id"`
	WindowStart time.Time    `db:"window_start"`
	WindowEnd   time.Time    `db:"window_end"`
	Status      ExportStatus `db:"status"`
	ArchivePath string       `db:"archive_path"`
	Error       *string      `db:"error"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

// RenderedMessage is one normalized chat message as it appears in the
// export: identity and timestamps from upstream, body already rewritten to
// local asset references.
type RenderedMessage struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	FromID    string     `json:"fromId"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Kind      string     `json:"kind"`
	HTML      string     `json:"html"`
}
