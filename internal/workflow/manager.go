// Package workflow drives background scanning: it polls the store for pending
// documents and runs them through the scanner with bounded concurrency.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"redact/internal/config"
	"redact/internal/ledger"
	"redact/internal/logging"
	"redact/internal/normalize"
	"redact/internal/notifications"
	"redact/internal/scanner"
	"redact/internal/services"
	"redact/internal/store"
)

// Manager coordinates document scanning for the daemon.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	scanner      *scanner.Scanner
	ledger       *ledger.Ledger
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	concurrency  int

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, sc *scanner.Scanner, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, st, sc, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, st *store.Store, sc *scanner.Scanner, logger *slog.Logger, notifier notifications.Service) *Manager {
	concurrency := cfg.Workflow.ScanConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		scanner:      sc,
		ledger:       ledger.New(st),
		logger:       logging.WithComponent(logger, "workflow"),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
		concurrency:  concurrency,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the poll loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent scan or store error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := m.ProcessPending(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			m.logger.Error("pending document pass failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state database access"),
			)
			if notifyErr := m.notifier.NotifyError(ctx, err, "scan poll"); notifyErr != nil {
				m.logger.Warn("error notification failed", logging.Error(notifyErr))
			}
		}
		if processed > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.pollInterval):
		}
	}
}

// ProcessPending scans every pending document once, at most concurrency at a
// time, and returns how many documents were picked up.
func (m *Manager) ProcessPending(ctx context.Context) (int, error) {
	pending, err := m.store.DocumentsByStatus(ctx, store.DocumentPending)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup
	for _, doc := range pending {
		select {
		case <-ctx.Done():
			wg.Wait()
			return 0, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(doc *store.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			m.scanDocument(ctx, doc)
		}(doc)
	}
	wg.Wait()
	return len(pending), nil
}

func (m *Manager) scanDocument(ctx context.Context, doc *store.Document) {
	talkTitle := doc.TalkID
	if talk, err := m.store.GetTalk(ctx, doc.TalkID); err == nil && talk != nil {
		talkTitle = talk.Title
	}

	findings, err := m.scanner.ScanDocument(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.setLastError(err)
		var conflict *normalize.ConflictError
		if errors.As(err, &conflict) {
			if notifyErr := m.notifier.NotifyTalkHalted(ctx, talkTitle, conflict.Error()); notifyErr != nil {
				m.logger.Warn("halt notification failed", logging.Error(notifyErr))
			}
			return
		}
		reason := err.Error()
		if services.Retryable(err) {
			reason += " (retryable)"
		}
		if notifyErr := m.notifier.NotifyScanFailed(ctx, talkTitle, doc.Name, reason); notifyErr != nil {
			m.logger.Warn("failure notification failed", logging.Error(notifyErr))
		}
		return
	}

	if err := m.notifier.NotifyScanCompleted(ctx, talkTitle, doc.Name, findings); err != nil {
		m.logger.Warn("scan notification failed", logging.Error(err))
	}
	m.maybeNotifyReviewComplete(ctx, doc.TalkID, talkTitle)
}

// maybeNotifyReviewComplete fires once every document is scanned and no
// entity awaits a decision.
func (m *Manager) maybeNotifyReviewComplete(ctx context.Context, talkID, talkTitle string) {
	progress, err := m.store.ReviewProgress(ctx, talkID)
	if err != nil {
		m.logger.Warn("review progress lookup failed", logging.Error(err))
		return
	}
	if progress.Documents == 0 || progress.ScannedDocuments != progress.Documents {
		return
	}
	if progress.Entities == 0 {
		return
	}
	pending, err := m.ledger.Pending(ctx, talkID)
	if err != nil {
		m.logger.Warn("pending findings lookup failed", logging.Error(err))
		return
	}
	if len(pending) > 0 {
		return
	}
	if err := m.notifier.NotifyReviewComplete(ctx, talkTitle); err != nil {
		m.logger.Warn("review notification failed", logging.Error(err))
	}
}
