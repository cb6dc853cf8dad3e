// Package reviewaccess gives the CLI one review surface regardless of whether
// a daemon is running: IPC when the socket answers, direct store access
// otherwise.
package reviewaccess

import (
	"context"
	"errors"

	"redact/internal/api"
	"redact/internal/ipc"
	"redact/internal/ledger"
)

// Status mirrors daemon runtime information for CLI rendering.
type Status struct {
	Running      bool
	Talks        int
	PendingDocs  int
	FailedDocs   int
	LastError    string
	DatabasePath string
	LockPath     string
	PID          int
}

// Access provides review operations regardless of IPC or direct store backing.
type Access interface {
	CreateTalk(ctx context.Context, title, speaker, language string) (api.Talk, error)
	ListTalks(ctx context.Context) ([]api.Talk, []api.ReviewProgress, error)
	ShowTalk(ctx context.Context, ref string) (api.Talk, []api.Document, api.ReviewProgress, error)
	ResumeTalk(ctx context.Context, ref string) (api.Talk, error)
	AddDocument(ctx context.Context, talkRef, name, content string) (api.Document, error)
	Scan(ctx context.Context) (int, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	PendingFindings(ctx context.Context, talkRef string) ([]api.Finding, error)
	Decide(ctx context.Context, req ledger.DecideRequest) (api.Decision, error)
	DecisionHistory(ctx context.Context, entityID string) ([]api.Decision, error)
	Sanitize(ctx context.Context, talkRef string) (api.SanitizeResult, error)
	Status(ctx context.Context) (Status, error)
	StopDaemon(ctx context.Context) error
	TestNotification(ctx context.Context) error
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) CreateTalk(_ context.Context, title, speaker, language string) (api.Talk, error) {
	resp, err := a.client.TalkCreate(ipc.TalkCreateRequest{Title: title, Speaker: speaker, Language: language})
	if err != nil {
		return api.Talk{}, err
	}
	return resp.Talk, nil
}

func (a *ipcAccess) ListTalks(_ context.Context) ([]api.Talk, []api.ReviewProgress, error) {
	resp, err := a.client.TalkList()
	if err != nil {
		return nil, nil, err
	}
	return resp.Talks, resp.Progress, nil
}

func (a *ipcAccess) ShowTalk(_ context.Context, ref string) (api.Talk, []api.Document, api.ReviewProgress, error) {
	resp, err := a.client.TalkShow(ipc.TalkShowRequest{Ref: ref})
	if err != nil {
		return api.Talk{}, nil, api.ReviewProgress{}, err
	}
	return resp.Talk, resp.Documents, resp.Progress, nil
}

func (a *ipcAccess) ResumeTalk(_ context.Context, ref string) (api.Talk, error) {
	resp, err := a.client.TalkResume(ipc.TalkResumeRequest{Ref: ref})
	if err != nil {
		return api.Talk{}, err
	}
	return resp.Talk, nil
}

func (a *ipcAccess) AddDocument(_ context.Context, talkRef, name, content string) (api.Document, error) {
	resp, err := a.client.DocumentAdd(ipc.DocumentAddRequest{TalkRef: talkRef, Name: name, Content: content})
	if err != nil {
		return api.Document{}, err
	}
	return resp.Document, nil
}

func (a *ipcAccess) Scan(_ context.Context) (int, error) {
	resp, err := a.client.Scan()
	if err != nil {
		return 0, err
	}
	return resp.Processed, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := a.client.Retry(ipc.RetryRequest{IDs: ids})
	if err != nil {
		return 0, err
	}
	return resp.Requeued, nil
}

func (a *ipcAccess) PendingFindings(_ context.Context, talkRef string) ([]api.Finding, error) {
	resp, err := a.client.PendingFindings(ipc.PendingFindingsRequest{TalkRef: talkRef})
	if err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

func (a *ipcAccess) Decide(_ context.Context, req ledger.DecideRequest) (api.Decision, error) {
	resp, err := a.client.Decide(ipc.DecideRequest{
		EntityID:    req.EntityID,
		Status:      req.Status,
		Replacement: req.Replacement,
		Note:        req.Note,
	})
	if err != nil {
		return api.Decision{}, err
	}
	return resp.Decision, nil
}

func (a *ipcAccess) DecisionHistory(_ context.Context, entityID string) ([]api.Decision, error) {
	resp, err := a.client.DecisionHistory(ipc.DecisionHistoryRequest{EntityID: entityID})
	if err != nil {
		return nil, err
	}
	return resp.Decisions, nil
}

func (a *ipcAccess) Sanitize(_ context.Context, talkRef string) (api.SanitizeResult, error) {
	resp, err := a.client.Sanitize(ipc.SanitizeRequest{TalkRef: talkRef})
	if err != nil {
		return api.SanitizeResult{}, err
	}
	return resp.Result, nil
}

func (a *ipcAccess) Status(_ context.Context) (Status, error) {
	resp, err := a.client.Status()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      resp.Running,
		Talks:        resp.Talks,
		PendingDocs:  resp.PendingDocs,
		FailedDocs:   resp.FailedDocs,
		LastError:    resp.LastError,
		DatabasePath: resp.DatabasePath,
		LockPath:     resp.LockPath,
		PID:          resp.PID,
	}, nil
}

func (a *ipcAccess) StopDaemon(_ context.Context) error {
	_, err := a.client.Stop()
	return err
}

func (a *ipcAccess) TestNotification(_ context.Context) error {
	resp, err := a.client.TestNotification()
	if err != nil {
		return err
	}
	if !resp.Sent {
		return errors.New(resp.Message)
	}
	return nil
}
