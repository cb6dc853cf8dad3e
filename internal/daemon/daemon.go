// Package daemon coordinates the background services behind redactd and
// enforces single-instance execution.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"redact/internal/api"
	"redact/internal/config"
	"redact/internal/ledger"
	"redact/internal/logging"
	"redact/internal/notifications"
	"redact/internal/sanitize"
	"redact/internal/store"
	"redact/internal/workflow"
)

type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	ledger   *ledger.Ledger
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Talks        int
	PendingDocs  int
	FailedDocs   int
	LastError    string
	DatabasePath string
	LockFilePath string
	PID          int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    st,
		workflow: wf,
		ledger:   ledger.New(st),
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start launches the workflow manager and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another redact daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("redact daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("redact daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports current runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		PID:          os.Getpid(),
	}
	if err := d.workflow.LastError(); err != nil {
		status.LastError = err.Error()
	}
	if talks, err := d.store.ListTalks(ctx); err == nil {
		status.Talks = len(talks)
	}
	if docs, err := d.store.DocumentsByStatus(ctx, store.DocumentPending); err == nil {
		status.PendingDocs = len(docs)
	}
	if docs, err := d.store.DocumentsByStatus(ctx, store.DocumentFailed); err == nil {
		status.FailedDocs = len(docs)
	}
	return status
}

// CreateTalk registers a new talk.
func (d *Daemon) CreateTalk(ctx context.Context, title, speaker, languageTag string) (api.Talk, error) {
	if languageTag == "" {
		languageTag = d.cfg.Detector.Language
	}
	talk, err := d.store.CreateTalk(ctx, title, speaker, languageTag)
	if err != nil {
		return api.Talk{}, err
	}
	return api.TalkFromStore(talk), nil
}

// ListTalks returns all talks with their review progress.
func (d *Daemon) ListTalks(ctx context.Context) ([]api.Talk, []api.ReviewProgress, error) {
	talks, err := d.store.ListTalks(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make([]api.Talk, 0, len(talks))
	progress := make([]api.ReviewProgress, 0, len(talks))
	for _, talk := range talks {
		p, err := d.store.ReviewProgress(ctx, talk.ID)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, api.TalkFromStore(talk))
		progress = append(progress, api.ProgressFromStore(&p))
	}
	return out, progress, nil
}

// ShowTalk returns one talk with its documents and review progress.
func (d *Daemon) ShowTalk(ctx context.Context, ref string) (api.Talk, []api.Document, api.ReviewProgress, error) {
	talk, err := d.store.ResolveTalk(ctx, ref)
	if err != nil {
		return api.Talk{}, nil, api.ReviewProgress{}, err
	}
	docs, err := d.store.ListDocuments(ctx, talk.ID)
	if err != nil {
		return api.Talk{}, nil, api.ReviewProgress{}, err
	}
	progress, err := d.store.ReviewProgress(ctx, talk.ID)
	if err != nil {
		return api.Talk{}, nil, api.ReviewProgress{}, err
	}
	dtos := make([]api.Document, 0, len(docs))
	for _, doc := range docs {
		dtos = append(dtos, api.DocumentFromStore(doc))
	}
	return api.TalkFromStore(talk), dtos, api.ProgressFromStore(&progress), nil
}

// AddDocument uploads one transcript into a talk. Re-uploading a name
// supersedes all prior versions; the new version waits for the next scan pass.
func (d *Daemon) AddDocument(ctx context.Context, talkRef, name, content string) (api.Document, error) {
	talk, err := d.store.ResolveTalk(ctx, talkRef)
	if err != nil {
		return api.Document{}, err
	}
	doc, err := d.store.AddDocument(ctx, talk.ID, name, content)
	if err != nil {
		return api.Document{}, err
	}
	d.logger.Info("document added",
		logging.String(logging.FieldTalkID, talk.ID),
		logging.Int64(logging.FieldDocumentID, doc.ID),
		logging.String("document", doc.Name),
		logging.Int("version", doc.Version),
	)
	return api.DocumentFromStore(doc), nil
}

// Scan runs one synchronous scan pass over pending documents.
func (d *Daemon) Scan(ctx context.Context) (int, error) {
	return d.workflow.ProcessPending(ctx)
}

// RetryFailed puts failed documents back into the scan queue.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return d.store.RetryFailedDocuments(ctx, ids...)
}

// ResumeTalk reactivates a halted talk after manual conflict resolution.
func (d *Daemon) ResumeTalk(ctx context.Context, ref string) (api.Talk, error) {
	talk, err := d.store.ResolveTalk(ctx, ref)
	if err != nil {
		return api.Talk{}, err
	}
	if talk.Status != store.TalkHalted {
		return api.Talk{}, fmt.Errorf("talk %s is not halted", talk.Slug)
	}
	if err := d.store.SetTalkStatus(ctx, talk.ID, store.TalkActive); err != nil {
		return api.Talk{}, err
	}
	updated, err := d.store.GetTalk(ctx, talk.ID)
	if err != nil {
		return api.Talk{}, err
	}
	d.logger.Info("talk resumed", logging.String(logging.FieldTalkID, talk.ID))
	return api.TalkFromStore(updated), nil
}

// PendingFindings returns the entities of a talk that still need a decision.
func (d *Daemon) PendingFindings(ctx context.Context, talkRef string) ([]api.Finding, error) {
	talk, err := d.store.ResolveTalk(ctx, talkRef)
	if err != nil {
		return nil, err
	}
	return d.ledger.Pending(ctx, talk.ID)
}

// Decide records one review decision.
func (d *Daemon) Decide(ctx context.Context, req ledger.DecideRequest) (api.Decision, error) {
	return d.ledger.Decide(ctx, req)
}

// DecisionHistory returns the full audit trail for one entity.
func (d *Daemon) DecisionHistory(ctx context.Context, entityID string) ([]api.Decision, error) {
	return d.ledger.History(ctx, entityID)
}

// Sanitize rewrites every live document of a talk against the current
// decision snapshot and writes the results under the review directory.
func (d *Daemon) Sanitize(ctx context.Context, talkRef string) (api.SanitizeResult, error) {
	talk, err := d.store.ResolveTalk(ctx, talkRef)
	if err != nil {
		return api.SanitizeResult{}, err
	}
	if talk.Status == store.TalkHalted {
		return api.SanitizeResult{}, fmt.Errorf("talk %s is halted pending conflict resolution", talk.Slug)
	}
	docs, err := d.store.ListDocuments(ctx, talk.ID)
	if err != nil {
		return api.SanitizeResult{}, err
	}
	for _, doc := range docs {
		if doc.Status != store.DocumentScanned {
			return api.SanitizeResult{}, fmt.Errorf("document %s is %s, sanitize requires every document scanned", doc.Name, doc.Status)
		}
	}

	snapshot, err := d.ledger.Current(ctx, talk.ID)
	if err != nil {
		return api.SanitizeResult{}, err
	}

	result := api.SanitizeResult{TalkID: talk.ID}
	for _, doc := range docs {
		occurrences, err := d.store.OccurrencesForDocument(ctx, doc.ID)
		if err != nil {
			return api.SanitizeResult{}, err
		}
		sanitized, err := sanitize.Document(doc, occurrences, snapshot)
		if err != nil {
			return api.SanitizeResult{}, err
		}
		outputPath, err := d.writeSanitized(talk.Slug, sanitized)
		if err != nil {
			return api.SanitizeResult{}, err
		}
		sanitized.OutputPath = outputPath
		result.Documents = append(result.Documents, sanitized)
	}

	d.logger.Info("talk sanitized",
		logging.String(logging.FieldTalkID, talk.ID),
		logging.Int("documents", len(result.Documents)),
	)
	if err := d.notifier.NotifySanitizeCompleted(ctx, talk.Title, len(result.Documents)); err != nil {
		d.logger.Warn("sanitize notification failed", logging.Error(err))
	}
	return result, nil
}

// writeSanitized stores one sanitized document plus its JSON diff sidecar
// under <review_dir>/<talk-slug>/. The outputs are derived artifacts and safe
// to delete.
func (d *Daemon) writeSanitized(slug string, doc api.SanitizedDocument) (string, error) {
	dir := filepath.Join(d.cfg.Paths.ReviewDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create review directory: %w", err)
	}
	outputPath := filepath.Join(dir, doc.Name)
	if err := os.WriteFile(outputPath, []byte(doc.Content), 0o644); err != nil {
		return "", fmt.Errorf("write sanitized document: %w", err)
	}
	diff, err := json.MarshalIndent(doc.AppliedDiff, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode diff: %w", err)
	}
	if err := os.WriteFile(outputPath+".diff.json", diff, 0o644); err != nil {
		return "", fmt.Errorf("write diff sidecar: %w", err)
	}
	return outputPath, nil
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}
