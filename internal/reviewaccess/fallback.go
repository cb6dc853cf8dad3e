package reviewaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"redact/internal/api"
	"redact/internal/config"
	"redact/internal/daemon"
	"redact/internal/detect"
	"redact/internal/ipc"
	"redact/internal/ledger"
	"redact/internal/logging"
	"redact/internal/notifications"
	"redact/internal/scanner"
	"redact/internal/store"
	"redact/internal/workflow"
)

// Session represents a review access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to direct
// store access. The fallback runs scans in-process with the configured
// detector, so review work continues without the daemon.
func OpenWithFallback(
	cfg *config.Config,
	logger *slog.Logger,
	dial func() (*ipc.Client, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		return Session{}, fmt.Errorf("open state store: %w", err)
	}
	access, err := NewStoreAccess(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return Session{}, err
	}
	return Session{
		Access: access,
		close:  st.Close,
	}, nil
}

// NewStoreAccess returns an Access backed by the store directly. It reuses the
// daemon's operation surface without acquiring its lock.
func NewStoreAccess(cfg *config.Config, st *store.Store, logger *slog.Logger) (Access, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	detector, err := detect.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build detector: %w", err)
	}
	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, st, scanner.New(cfg, st, detector, logger), logger, notifier)
	d, err := daemon.New(cfg, st, logger, manager, notifier)
	if err != nil {
		return nil, err
	}
	return &storeAccess{daemon: d}, nil
}

type storeAccess struct {
	daemon *daemon.Daemon
}

func (a *storeAccess) CreateTalk(ctx context.Context, title, speaker, language string) (api.Talk, error) {
	return a.daemon.CreateTalk(ctx, title, speaker, language)
}

func (a *storeAccess) ListTalks(ctx context.Context) ([]api.Talk, []api.ReviewProgress, error) {
	return a.daemon.ListTalks(ctx)
}

func (a *storeAccess) ShowTalk(ctx context.Context, ref string) (api.Talk, []api.Document, api.ReviewProgress, error) {
	return a.daemon.ShowTalk(ctx, ref)
}

func (a *storeAccess) ResumeTalk(ctx context.Context, ref string) (api.Talk, error) {
	return a.daemon.ResumeTalk(ctx, ref)
}

func (a *storeAccess) AddDocument(ctx context.Context, talkRef, name, content string) (api.Document, error) {
	return a.daemon.AddDocument(ctx, talkRef, name, content)
}

func (a *storeAccess) Scan(ctx context.Context) (int, error) {
	return a.daemon.Scan(ctx)
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.daemon.RetryFailed(ctx, ids...)
}

func (a *storeAccess) PendingFindings(ctx context.Context, talkRef string) ([]api.Finding, error) {
	return a.daemon.PendingFindings(ctx, talkRef)
}

func (a *storeAccess) Decide(ctx context.Context, req ledger.DecideRequest) (api.Decision, error) {
	return a.daemon.Decide(ctx, req)
}

func (a *storeAccess) DecisionHistory(ctx context.Context, entityID string) ([]api.Decision, error) {
	return a.daemon.DecisionHistory(ctx, entityID)
}

func (a *storeAccess) Sanitize(ctx context.Context, talkRef string) (api.SanitizeResult, error) {
	return a.daemon.Sanitize(ctx, talkRef)
}

func (a *storeAccess) Status(ctx context.Context) (Status, error) {
	status := a.daemon.Status(ctx)
	return Status{
		Running:      false,
		Talks:        status.Talks,
		PendingDocs:  status.PendingDocs,
		FailedDocs:   status.FailedDocs,
		DatabasePath: status.DatabasePath,
		LockPath:     status.LockFilePath,
	}, nil
}

func (a *storeAccess) StopDaemon(context.Context) error {
	return errors.New("daemon is not running")
}

func (a *storeAccess) TestNotification(ctx context.Context) error {
	return a.daemon.TestNotification(ctx)
}
