// Package scanner runs detection and normalization for one document at a
// time and records the outcome. A failed detector run marks the document
// failed and retryable; it is never reported as a clean scan with zero
// findings.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/language"

	"redact/internal/config"
	"redact/internal/detect"
	"redact/internal/logging"
	"redact/internal/normalize"
	"redact/internal/services"
	"redact/internal/store"
)

type Scanner struct {
	store      *store.Store
	detector   detect.Detector
	normalizer *normalize.Normalizer
	logger     *slog.Logger

	timeout       time.Duration
	minConfidence float64
	language      language.Tag

	mu        sync.Mutex
	talkLocks map[string]*sync.Mutex
}

func New(cfg *config.Config, st *store.Store, detector detect.Detector, logger *slog.Logger) *Scanner {
	tag, err := language.Parse(cfg.Detector.Language)
	if err != nil {
		tag = language.Und
	}
	return &Scanner{
		store:         st,
		detector:      detector,
		normalizer:    normalize.New(matcherFor(cfg)),
		logger:        logging.WithComponent(logger, "scanner"),
		timeout:       time.Duration(cfg.Detector.TimeoutSeconds) * time.Second,
		minConfidence: cfg.Detector.MinConfidence,
		language:      tag,
		talkLocks:     make(map[string]*sync.Mutex),
	}
}

func matcherFor(cfg *config.Config) normalize.Matcher {
	matcher, ok := normalize.MatcherByName(cfg.Matcher.Strategy)
	if !ok {
		matcher = normalize.ExactMatcher{}
	}
	return matcher
}

// talkLock serializes normalization per talk. Documents of different talks
// scan concurrently; two documents of the same talk must not race on the
// entity partition.
func (s *Scanner) talkLock(talkID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.talkLocks[talkID]
	if !ok {
		lock = &sync.Mutex{}
		s.talkLocks[talkID] = lock
	}
	return lock
}

// ScanDocument processes one uploaded document end to end. It returns the
// number of occurrences recorded by this pass.
func (s *Scanner) ScanDocument(ctx context.Context, documentID int64) (int, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "scan", "load", "load document", err)
	}
	if doc == nil {
		return 0, services.Wrap(services.ErrNotFound, "scan", "load",
			fmt.Sprintf("document %d does not exist", documentID), store.ErrNotFound)
	}
	talk, err := s.store.GetTalk(ctx, doc.TalkID)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "scan", "load", "load talk", err)
	}
	if talk == nil {
		return 0, services.Wrap(services.ErrNotFound, "scan", "load",
			fmt.Sprintf("talk %s does not exist", doc.TalkID), store.ErrNotFound)
	}
	if talk.Status == store.TalkHalted {
		return 0, services.Wrap(services.ErrValidation, "scan", "load",
			fmt.Sprintf("talk %s is halted pending conflict resolution", talk.Slug), nil)
	}

	if err := s.store.MarkDocumentScanning(ctx, doc.ID); err != nil {
		return 0, err
	}

	started := time.Now()
	ctx = services.WithTalkID(ctx, doc.TalkID)
	ctx = services.WithDocumentID(ctx, doc.ID)
	ctx = services.WithStage(ctx, "scan")
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("scanning document",
		logging.String("document", doc.Name),
		logging.String("detector", s.detector.Name()),
		logging.String("matcher", s.normalizer.MatcherName()),
	)

	detectCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	candidates, err := s.detector.Detect(detectCtx, doc.Content, s.language)
	if err != nil {
		s.markFailed(ctx, doc.ID, fmt.Sprintf("detection unavailable: %v", err))
		logger.Warn("detection unavailable, document marked for retry", logging.Error(err))
		return 0, services.Wrap(services.ErrExternalTool, "scan", "detect", "detector backend failed", err)
	}
	filtered := detect.Filter(doc.Content, candidates, s.minConfidence)

	lock := s.talkLock(doc.TalkID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.EntitiesForTalk(ctx, doc.TalkID)
	if err != nil {
		return 0, s.failScan(ctx, doc.ID, err)
	}
	assignments, err := s.normalizer.Assign(doc, filtered, existing)
	if err != nil {
		var conflict *normalize.ConflictError
		if errors.As(err, &conflict) {
			return 0, s.haltTalk(ctx, doc, conflict)
		}
		return 0, s.failScan(ctx, doc.ID, err)
	}

	for _, assignment := range assignments {
		if assignment.NewEntity {
			err := s.store.CreateEntity(ctx, &store.Entity{
				ID:            assignment.EntityID,
				TalkID:        doc.TalkID,
				Category:      assignment.Category,
				CanonicalText: assignment.CanonicalText,
			})
			if err != nil {
				return 0, s.failScan(ctx, doc.ID, err)
			}
		}
		if err := s.store.AppendOccurrence(ctx, assignment.Occurrence); err != nil {
			if errors.Is(err, store.ErrOccurrenceTaken) {
				return 0, s.haltTalk(ctx, doc, &normalize.ConflictError{
					DocumentID: doc.ID,
					Start:      assignment.Occurrence.Start,
					End:        assignment.Occurrence.End,
					EntityIDs:  [2]string{assignment.EntityID, "?"},
				})
			}
			return 0, s.failScan(ctx, doc.ID, err)
		}
	}

	if err := s.store.MarkDocumentScanned(ctx, doc.ID); err != nil {
		return 0, s.failScan(ctx, doc.ID, err)
	}
	logger.Info("document scanned",
		logging.Int("findings", len(assignments)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return len(assignments), nil
}

// failScan marks the document failed after a mid-scan store error and returns
// that error. The document goes back to the retry pool instead of sitting in
// scanning, a state no transition can leave.
func (s *Scanner) failScan(ctx context.Context, docID int64, err error) error {
	s.markFailed(ctx, docID, fmt.Sprintf("scan aborted: %v", err))
	return err
}

// markFailed records a scan failure on a context detached from the scan's
// cancellation, so an aborted scan still persists the failed status.
func (s *Scanner) markFailed(ctx context.Context, docID int64, hint string) {
	if err := s.store.MarkDocumentFailed(context.WithoutCancel(ctx), docID, hint); err != nil {
		s.logger.Warn("could not mark document failed",
			logging.Int64(logging.FieldDocumentID, docID),
			logging.Error(err),
		)
	}
}

// haltTalk freezes the talk on a partition conflict. Scans and sanitization
// stop until an operator resolves it; the document stays failed so the reason
// is visible.
func (s *Scanner) haltTalk(ctx context.Context, doc *store.Document, conflict *normalize.ConflictError) error {
	if err := s.store.SetTalkStatus(ctx, doc.TalkID, store.TalkHalted); err != nil {
		return err
	}
	s.markFailed(ctx, doc.ID, fmt.Sprintf("normalization conflict: %v", conflict))
	s.logger.Error("talk halted on normalization conflict",
		logging.String(logging.FieldTalkID, doc.TalkID),
		logging.Int64(logging.FieldDocumentID, doc.ID),
		logging.Error(conflict),
	)
	return services.Wrap(services.ErrValidation, "scan", "normalize", "normalization conflict halted talk", conflict)
}
