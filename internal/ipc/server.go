// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"redact/internal/daemon"
	"redact/internal/ledger"
	"redact/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Redact", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun redact daemon stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return logging.WithComponent(s.logger, "ipc")
}

func (s *service) TalkCreate(req TalkCreateRequest, resp *TalkCreateResponse) error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("talk title required")
	}
	talk, err := s.daemon.CreateTalk(s.ctx, req.Title, req.Speaker, req.Language)
	if err != nil {
		return err
	}
	resp.Talk = talk
	return nil
}

func (s *service) TalkList(_ TalkListRequest, resp *TalkListResponse) error {
	talks, progress, err := s.daemon.ListTalks(s.ctx)
	if err != nil {
		return err
	}
	resp.Talks = talks
	resp.Progress = progress
	return nil
}

func (s *service) TalkShow(req TalkShowRequest, resp *TalkShowResponse) error {
	talk, docs, progress, err := s.daemon.ShowTalk(s.ctx, req.Ref)
	if err != nil {
		return err
	}
	resp.Talk = talk
	resp.Documents = docs
	resp.Progress = progress
	return nil
}

func (s *service) TalkResume(req TalkResumeRequest, resp *TalkResumeResponse) error {
	talk, err := s.daemon.ResumeTalk(s.ctx, req.Ref)
	if err != nil {
		return err
	}
	resp.Talk = talk
	return nil
}

func (s *service) DocumentAdd(req DocumentAddRequest, resp *DocumentAddResponse) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("document name required")
	}
	doc, err := s.daemon.AddDocument(s.ctx, req.TalkRef, req.Name, req.Content)
	if err != nil {
		return err
	}
	resp.Document = doc
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	processed, err := s.daemon.Scan(s.ctx)
	if err != nil {
		return err
	}
	resp.Processed = processed
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	requeued, err := s.daemon.RetryFailed(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Requeued = requeued
	return nil
}

func (s *service) PendingFindings(req PendingFindingsRequest, resp *PendingFindingsResponse) error {
	findings, err := s.daemon.PendingFindings(s.ctx, req.TalkRef)
	if err != nil {
		return err
	}
	resp.Findings = findings
	return nil
}

func (s *service) Decide(req DecideRequest, resp *DecideResponse) error {
	decision, err := s.daemon.Decide(s.ctx, ledger.DecideRequest{
		EntityID:    req.EntityID,
		Status:      req.Status,
		Replacement: req.Replacement,
		Note:        req.Note,
	})
	if err != nil {
		return err
	}
	resp.Decision = decision
	return nil
}

func (s *service) DecisionHistory(req DecisionHistoryRequest, resp *DecisionHistoryResponse) error {
	decisions, err := s.daemon.DecisionHistory(s.ctx, req.EntityID)
	if err != nil {
		return err
	}
	resp.Decisions = decisions
	return nil
}

func (s *service) Sanitize(req SanitizeRequest, resp *SanitizeResponse) error {
	result, err := s.daemon.Sanitize(s.ctx, req.TalkRef)
	if err != nil {
		return err
	}
	resp.Result = result
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Talks = status.Talks
	resp.PendingDocs = status.PendingDocs
	resp.FailedDocs = status.FailedDocs
	resp.LastError = status.LastError
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.PID = status.PID
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "notification sent"
	return nil
}
