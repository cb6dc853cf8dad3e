package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"redact/internal/config"
	"redact/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyReviewComplete(context.Background(), "Beispielvortrag"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "scan completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyScanCompleted(context.Background(), "Beispielvortrag", "transcript.txt", 4)
			},
			expectTitle:   "Redact - Scan Complete",
			expectMessage: "Scanned transcript.txt (Beispielvortrag): 4 findings",
			expectTags:    "redact,scan,completed",
		},
		{
			name: "scan failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyScanFailed(context.Background(), "Beispielvortrag", "transcript.txt", "detector unreachable")
			},
			expectTitle:    "Redact - Scan Failed",
			expectMessage:  "Scan failed: transcript.txt (Beispielvortrag)\ndetector unreachable",
			expectTags:     "redact,scan,failed",
			expectPriority: "high",
		},
		{
			name: "review complete",
			notify: func(svc notifications.Service) error {
				return svc.NotifyReviewComplete(context.Background(), "Beispielvortrag")
			},
			expectTitle:    "Redact - Review Complete",
			expectMessage:  "All findings decided: Beispielvortrag\nReady to sanitize",
			expectTags:     "redact,review,completed",
			expectPriority: "high",
		},
		{
			name: "talk halted",
			notify: func(svc notifications.Service) error {
				return svc.NotifyTalkHalted(context.Background(), "Beispielvortrag", "span claimed twice")
			},
			expectTitle:    "Redact - Talk Halted",
			expectMessage:  "Talk halted: Beispielvortrag\nManual resolution required\nspan claimed twice",
			expectTags:     "redact,conflict,alert",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("database locked"), "scan")
			},
			expectTitle:    "Redact - Error",
			expectMessage:  "Error with scan: database locked",
			expectTags:     "redact,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)

			if err := tc.notify(svc); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", captured.title, tc.expectTitle)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("message = %q, want %q", captured.body, tc.expectMessage)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", captured.tags, tc.expectTags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", captured.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
