package ipc_test

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"

	"redact/internal/daemon"
	"redact/internal/detect"
	"redact/internal/ipc"
	"redact/internal/logging"
	"redact/internal/notifications"
	"redact/internal/scanner"
	"redact/internal/testsupport"
	"redact/internal/workflow"
)

type stubDetector struct {
	candidates []detect.Candidate
}

func (d *stubDetector) Name() string { return "stub" }

func (d *stubDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]detect.Candidate, error) {
	return d.candidates, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyScanCompleted(context.Context, string, string, int) error { return nil }
func (noopNotifier) NotifyScanFailed(context.Context, string, string, string) error { return nil }
func (noopNotifier) NotifyReviewComplete(context.Context, string) error             { return nil }
func (noopNotifier) NotifyTalkHalted(context.Context, string, string) error         { return nil }
func (noopNotifier) NotifySanitizeCompleted(context.Context, string, int) error     { return nil }
func (noopNotifier) NotifyError(context.Context, error, string) error               { return nil }
func (noopNotifier) TestNotification(context.Context) error                         { return nil }

func newClient(t *testing.T) *ipc.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	detector := &stubDetector{candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
	}}
	var notifier notifications.Service = noopNotifier{}
	manager := workflow.NewManagerWithNotifier(cfg, st, scanner.New(cfg, st, detector, logging.NewNop()), logging.NewNop(), notifier)
	d, err := daemon.New(cfg, st, logging.NewNop(), manager, notifier)
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "redact.sock")
	server, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestReviewRoundTrip(t *testing.T) {
	client := newClient(t)

	created, err := client.TalkCreate(ipc.TalkCreateRequest{Title: "Beispielvortrag", Language: "de"})
	if err != nil {
		t.Fatalf("talk create: %v", err)
	}
	if created.Talk.Slug == "" || created.Talk.Status != "active" {
		t.Fatalf("created talk = %+v", created.Talk)
	}

	added, err := client.DocumentAdd(ipc.DocumentAddRequest{
		TalkRef: created.Talk.Slug,
		Name:    "transcript.txt",
		Content: "Anna Schmidt sprach.",
	})
	if err != nil {
		t.Fatalf("document add: %v", err)
	}
	if added.Document.Status != "pending" {
		t.Fatalf("document status = %s, want pending", added.Document.Status)
	}

	scanResp, err := client.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanResp.Processed != 1 {
		t.Fatalf("processed = %d, want 1", scanResp.Processed)
	}

	pending, err := client.PendingFindings(ipc.PendingFindingsRequest{TalkRef: created.Talk.Slug})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending.Findings) != 1 || pending.Findings[0].SampleText != "Anna Schmidt" {
		t.Fatalf("pending findings = %+v", pending.Findings)
	}

	decided, err := client.Decide(ipc.DecideRequest{
		EntityID:    pending.Findings[0].EntityID,
		Status:      "edited",
		Replacement: "die Rednerin",
		Note:        "pseudonym",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decided.Decision.Status != "edited" || decided.Decision.Replacement != "die Rednerin" {
		t.Fatalf("decision = %+v", decided.Decision)
	}

	history, err := client.DecisionHistory(ipc.DecisionHistoryRequest{EntityID: pending.Findings[0].EntityID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Decisions) != 1 || history.Decisions[0].Note != "pseudonym" {
		t.Fatalf("history = %+v", history.Decisions)
	}

	sanitized, err := client.Sanitize(ipc.SanitizeRequest{TalkRef: created.Talk.Slug})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(sanitized.Result.Documents) != 1 {
		t.Fatalf("sanitized documents = %d, want 1", len(sanitized.Result.Documents))
	}
	if sanitized.Result.Documents[0].Content != "die Rednerin sprach." {
		t.Fatalf("sanitized content = %q", sanitized.Result.Documents[0].Content)
	}
	if sanitized.Result.Documents[0].OutputPath == "" {
		t.Fatal("sanitized document missing output path")
	}

	show, err := client.TalkShow(ipc.TalkShowRequest{Ref: created.Talk.Slug})
	if err != nil {
		t.Fatalf("talk show: %v", err)
	}
	if show.Progress.PendingEntities != 0 || show.Progress.DecidedEntities != 1 {
		t.Fatalf("progress = %+v", show.Progress)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Talks != 1 || status.PendingDocs != 0 {
		t.Fatalf("status = %+v", status)
	}
}

func TestSanitizeRefusesUndecidedEntities(t *testing.T) {
	client := newClient(t)

	created, err := client.TalkCreate(ipc.TalkCreateRequest{Title: "Beispielvortrag"})
	if err != nil {
		t.Fatalf("talk create: %v", err)
	}
	if _, err := client.DocumentAdd(ipc.DocumentAddRequest{
		TalkRef: created.Talk.Slug,
		Name:    "transcript.txt",
		Content: "Anna Schmidt sprach.",
	}); err != nil {
		t.Fatalf("document add: %v", err)
	}
	if _, err := client.Scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if _, err := client.Sanitize(ipc.SanitizeRequest{TalkRef: created.Talk.Slug}); err == nil {
		t.Fatal("sanitize must refuse while entities are undecided")
	}
}

func TestTalkCreateRequiresTitle(t *testing.T) {
	client := newClient(t)
	if _, err := client.TalkCreate(ipc.TalkCreateRequest{}); err == nil {
		t.Fatal("expected error for missing title")
	}
}
