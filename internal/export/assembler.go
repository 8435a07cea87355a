package export

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	"github.com/optiononetech/teams-chat-export/internal/database"
	apperrors "github.com/optiononetech/teams-chat-export/internal/errors"
	"github.com/optiononetech/teams-chat-export/internal/metrics"
	"github.com/optiononetech/teams-chat-export/internal/models"
	"github.com/optiononetech/teams-chat-export/internal/privacy"
	"github.com/optiononetech/teams-chat-export/internal/progress"
	"github.com/optiononetech/teams-chat-export/internal/tracing"
	"github.com/optiononetech/teams-chat-export/pkg/assets"
	"github.com/optiononetech/teams-chat-export/pkg/graph"

	"github.com/sirupsen/logrus"
)

// Assembler builds a complete chat archive: it walks the window, writes
// the rendered document and assets into a working directory and zips
// the result under the job key.
type Assembler struct {
	client       graph.Client
	db           *database.Database
	tracker      *progress.Tracker
	cfg          models.ExportConfig
	graphBaseURL string
	logger       *logrus.Logger

	inflightMu sync.Mutex
	inflight   map[string]chan struct{}
}

func NewAssembler(client graph.Client, db *database.Database, tracker *progress.Tracker, cfg models.ExportConfig, graphBaseURL string, logger *logrus.Logger) *Assembler {
	return &Assembler{
		client:       client,
		db:           db,
		tracker:      tracker,
		cfg:          cfg,
		graphBaseURL: graphBaseURL,
		logger:       logger,
		inflight:     map[string]chan struct{}{},
	}
}

// JobKey derives the deterministic key for a chat and window. Repeated
// requests for the same window map to the same archive.
func JobKey(chatID string, since, until time.Time) string {
	input := chatID + "\n" + since.UTC().Format(time.RFC3339) + "\n" + until.UTC().Format(time.RFC3339)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(input)))
}

// ArchivePath returns where the archive for a job key lives.
func (a *Assembler) ArchivePath(key string) string {
	return filepath.Join(a.cfg.RootDir, key+".zip")
}

// WorkDir returns the unpacked working tree for a job key, which also
// backs the public browsing endpoint.
func (a *Assembler) WorkDir(key string) string {
	return filepath.Join(a.cfg.RootDir, "raw", key)
}

// Export builds the archive for the chat window and returns its path.
// Existing output for the key is discarded first so the archive always
// reflects the current upstream state. On failure both the archive and
// the working tree are removed; a truncated archive is never left
// behind.
func (a *Assembler) Export(ctx context.Context, chatID string, since, until time.Time, token string) (string, error) {
	key := JobKey(chatID, since, until)
	ctx, span := tracing.StartSpan(ctx, "export.build")
	defer span.End()

	log := a.logger.WithFields(logrus.Fields{
		"chat_id": privacy.MaskChatID(chatID),
		"job_key": key,
	})

	if err := a.acquire(ctx, key); err != nil {
		a.tracker.Fail(token, err)
		return "", err
	}
	defer a.release(key)

	job := &models.ExportJob{
		Key:         key,
		ChatID:      chatID,
		WindowStart: since,
		WindowEnd:   endOfDay(until),
		Status:      models.ExportStatusRunning,
	}
	if err := a.db.SaveExportJob(ctx, job); err != nil {
		a.tracker.Fail(token, err)
		return "", err
	}

	archivePath, err := a.build(ctx, key, chatID, since, until, token)
	if err != nil {
		log.WithError(err).Error("Export failed")
		tracing.RecordError(ctx, err)
		metrics.IncrementCounter("exports_total", map[string]string{"status": "failed"}, "Exports by outcome")

		a.cleanup(key)
		msg := err.Error()
		if dbErr := a.db.UpdateExportJobStatus(ctx, key, models.ExportStatusFailed, "", &msg); dbErr != nil {
			log.WithError(dbErr).Warn("Failed to record export failure")
		}
		a.tracker.Fail(token, err)
		return "", apperrors.Wrap(err, apperrors.ErrCodeExportFailed, "export failed")
	}

	if err := a.db.UpdateExportJobStatus(ctx, key, models.ExportStatusCompleted, archivePath, nil); err != nil {
		log.WithError(err).Warn("Failed to record export completion")
	}
	metrics.IncrementCounter("exports_total", map[string]string{"status": "completed"}, "Exports by outcome")
	a.tracker.Complete(token)

	log.WithField("archive", archivePath).Info("Export completed")
	return archivePath, nil
}

// acquire serializes exports per job key. Concurrent requests for the
// same key run one at a time so a build never clobbers the working
// tree or archive of another build in flight.
func (a *Assembler) acquire(ctx context.Context, key string) error {
	for {
		a.inflightMu.Lock()
		done, busy := a.inflight[key]
		if !busy {
			a.inflight[key] = make(chan struct{})
			a.inflightMu.Unlock()
			return nil
		}
		a.inflightMu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Assembler) release(key string) {
	a.inflightMu.Lock()
	close(a.inflight[key])
	delete(a.inflight, key)
	a.inflightMu.Unlock()
}

func (a *Assembler) build(ctx context.Context, key, chatID string, since, until time.Time, token string) (string, error) {
	workDir := a.WorkDir(key)
	archivePath := a.ArchivePath(key)

	// Always rebuild: stale output for the key is discarded up front.
	a.cleanup(key)

	if err := os.MkdirAll(workDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}

	store, err := assets.NewStore(workDir)
	if err != nil {
		return "", err
	}

	chat, err := a.client.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	members, err := a.client.ListChatMembers(ctx, chatID)
	if err != nil {
		return "", err
	}
	me, err := a.client.GetMe(ctx)
	if err != nil {
		return "", err
	}

	resolver := newAttachmentResolver(a.client, a.logger)
	renderer := NewRenderer(a.client, store, resolver, a.graphBaseURL, me.ID, a.cfg.MaxReplyDepth, a.logger)
	walker := NewWalker(a.client, renderer, a.tracker, a.logger)

	rendered, err := walker.Walk(ctx, token, chatID, since, until)
	if err != nil {
		return "", err
	}

	docPath := filepath.Join(workDir, constants.DefaultExportDocName)
	doc, err := os.Create(docPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export document: %w", err)
	}
	defer doc.Close()

	if err := writeDocumentHeader(doc, chatID, chat.Title(), members); err != nil {
		return "", fmt.Errorf("failed to write export document: %w", err)
	}
	for _, msg := range rendered {
		if _, err := io.WriteString(doc, msg.HTML); err != nil {
			return "", fmt.Errorf("failed to write export document: %w", err)
		}
	}
	if err := writeDocumentFooter(doc); err != nil {
		return "", fmt.Errorf("failed to write export document: %w", err)
	}
	if err := doc.Close(); err != nil {
		return "", fmt.Errorf("failed to close export document: %w", err)
	}

	a.tracker.SetPhase(token, progress.PhasePackaging)

	if err := zipDirectory(workDir, archivePath); err != nil {
		return "", fmt.Errorf("failed to package archive: %w", err)
	}

	return archivePath, nil
}

func (a *Assembler) cleanup(key string) {
	if err := os.RemoveAll(a.WorkDir(key)); err != nil {
		a.logger.WithError(err).Warn("Failed to remove working directory")
	}
	if err := os.Remove(a.ArchivePath(key)); err != nil && !os.IsNotExist(err) {
		a.logger.WithError(err).Warn("Failed to remove archive")
	}
}

// zipDirectory packages srcDir into a zip at zipPath, with entry names
// relative to srcDir.
func zipDirectory(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path) // #nosec G304 - Paths come from walking our own working directory
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		return err
	}

	return zw.Close()
}
