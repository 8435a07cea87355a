package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/migrations"
	"github.com/optiononetech/teams-chat-export/internal/models"
	"github.com/optiononetech/teams-chat-export/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists the export job history: one row per job key, updated
// as the job moves through its lifecycle. Chat IDs are encrypted at rest
// when encryption is enabled.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveExportJob inserts a job row, or resets an existing row with the same
// key back to the given status. Export keys are deterministic per chat and
// window, so a rebuild reuses the row.
func (d *Database) SaveExportJob(ctx context.Context, job *models.ExportJob) error {
	encryptedChatID, err := d.encryptor.EncryptForLookupIfEnabled(job.ChatID)
	if err != nil {
		return fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	query := `
		INSERT INTO export_jobs (
			job_key, chat_id, window_start, window_end, status, archive_path, error
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_key) DO UPDATE SET
			status = excluded.status,
			archive_path = excluded.archive_path,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = d.db.ExecContext(ctx, query,
		job.Key,
		encryptedChatID,
		job.WindowStart,
		job.WindowEnd,
		job.Status,
		job.ArchivePath,
		job.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to save export job: %w", err)
	}

	return nil
}

// UpdateExportJobStatus moves a job to a new status, recording the archive
// path on completion or the failure message on error.
func (d *Database) UpdateExportJobStatus(ctx context.Context, key string, status models.ExportStatus, archivePath string, jobErr *string) error {
	query := `
		UPDATE export_jobs
		SET status = ?, archive_path = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE job_key = ?
	`

	res, err := d.db.ExecContext(ctx, query, status, archivePath, jobErr, key)
	if err != nil {
		return fmt.Errorf("failed to update export job status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("export job not found: %s", key)
	}

	return nil
}

// GetExportJob fetches a job row by its deterministic key.
func (d *Database) GetExportJob(ctx context.Context, key string) (*models.ExportJob, error) {
	query := `
		SELECT id, job_key, chat_id, window_start, window_end, status,
		       archive_path, error, created_at, updated_at
		FROM export_jobs
		WHERE job_key = ?
	`

	var encryptedChatID string
	job := &models.ExportJob{}

	err := d.db.QueryRowContext(ctx, query, key).Scan(
		&job.ID,
		&job.Key,
		&encryptedChatID,
		&job.WindowStart,
		&job.WindowEnd,
		&job.Status,
		&job.ArchivePath,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}

	job.ChatID, err = d.encryptor.DecryptIfEnabled(encryptedChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt chat ID: %w", err)
	}

	return job, nil
}

// ListExportJobsByChat returns all job rows for a chat, newest first.
func (d *Database) ListExportJobsByChat(ctx context.Context, chatID string) ([]*models.ExportJob, error) {
	encryptedChatID, err := d.encryptor.EncryptForLookupIfEnabled(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	query := `
		SELECT id, job_key, chat_id, window_start, window_end, status,
		       archive_path, error, created_at, updated_at
		FROM export_jobs
		WHERE chat_id = ?
		ORDER BY created_at DESC
	`

	rows, err := d.db.QueryContext(ctx, query, encryptedChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ExportJob
	for rows.Next() {
		var encrypted string
		job := &models.ExportJob{}
		if err := rows.Scan(
			&job.ID,
			&job.Key,
			&encrypted,
			&job.WindowStart,
			&job.WindowEnd,
			&job.Status,
			&job.ArchivePath,
			&job.Error,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export job: %w", err)
		}

		job.ChatID, err = d.encryptor.DecryptIfEnabled(encrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt chat ID: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export jobs: %w", err)
	}

	return jobs, nil
}

// CleanupOldJobs removes terminal job rows older than the retention window.
func (d *Database) CleanupOldJobs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	query := `
		DELETE FROM export_jobs
		WHERE status IN (?, ?) AND updated_at < ?
	`

	res, err := d.db.ExecContext(ctx, query, models.ExportStatusCompleted, models.ExportStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old jobs: %w", err)
	}

	return res.RowsAffected()
}
