package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/RahulSriwastaw/backend/internal/metrics"
	"github.com/RahulSriwastaw/backend/internal/provider"
)

// maxReportedErrors caps the per-entry error list in a BackfillResult so a
// provider directory full of bad entries cannot blow up the response body.
// The Failed count is always exact.
const maxReportedErrors = 50

// Backfill entry dispositions, also used as metric labels.
const (
	dispositionSynced  = "synced"
	dispositionFailed  = "failed"
	dispositionSkipped = "skipped"
)

// Directory lists provider accounts page by page. *provider.Client
// implements it; tests substitute a fake.
type Directory interface {
	ListUsers(ctx context.Context, pageToken string) (*provider.UserPage, error)
}

// EntryError records a single account that could not be reconciled.
type EntryError struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

// BackfillResult summarizes one bulk run.
type BackfillResult struct {
	RunID   string       `json:"runId"`
	Synced  int          `json:"synced"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Errors  []EntryError `json:"errors,omitempty"`
}

// BackfillService walks the provider's user directory and reconciles every
// account into the local store. One account failing must not stop the run.
type BackfillService struct {
	directory Directory
	accounts  *AccountService
	collector *metrics.Collector // nil-safe
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewBackfillService creates a BackfillService. pagesPerSecond throttles
// directory page pulls so a large backfill does not hammer the provider's
// admin API; values <= 0 disable throttling.
func NewBackfillService(
	directory Directory,
	accounts *AccountService,
	collector *metrics.Collector,
	pagesPerSecond float64,
	logger *slog.Logger,
) *BackfillService {
	var limiter *rate.Limiter
	if pagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), 1)
	}
	return &BackfillService{
		directory: directory,
		accounts:  accounts,
		collector: collector,
		limiter:   limiter,
		logger:    logger,
	}
}

// SyncAll reconciles the entire provider directory.
//
// Pages are pulled until the provider stops returning a next-page token.
// Within a page, entries are reconciled sequentially:
//
//   - an entry with no email is skipped (counted, not an error — the
//     engine requires an email and some provider accounts are phone-only)
//   - a reconciliation failure is recorded against that entry and the run
//     continues
//
// A page-level listing failure aborts the run: the counts reported so far
// are accurate, but the run did not finish.
func (s *BackfillService) SyncAll(ctx context.Context) (*BackfillResult, error) {
	result := &BackfillResult{RunID: uuid.NewString()}

	s.logger.Info("backfill run started", slog.String("runID", result.RunID))

	pageToken := ""
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("service/backfill: waiting on page limiter: %w", err)
			}
		}

		page, err := s.directory.ListUsers(ctx, pageToken)
		if err != nil {
			return nil, fmt.Errorf("service/backfill: listing provider users: %w", err)
		}

		for _, u := range page.Users {
			s.syncEntry(ctx, u, result)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	s.collector.RecordBackfillRun()
	s.logger.Info("backfill run finished",
		slog.String("runID", result.RunID),
		slog.Int("synced", result.Synced),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

func (s *BackfillService) syncEntry(ctx context.Context, u provider.User, result *BackfillResult) {
	if u.Email == "" {
		result.Skipped++
		s.collector.RecordBackfillEntry(dispositionSkipped)
		return
	}

	if _, _, err := s.accounts.Reconcile(ctx, u.Claims(), Overrides{}); err != nil {
		result.Failed++
		s.collector.RecordBackfillEntry(dispositionFailed)
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, EntryError{
				UID:   u.UID,
				Email: u.Email,
				Error: err.Error(),
			})
		}
		s.logger.Warn("backfill entry failed",
			slog.String("runID", result.RunID),
			slog.String("uid", u.UID),
			slog.String("error", err.Error()),
		)
		return
	}

	result.Synced++
	s.collector.RecordBackfillEntry(dispositionSynced)
}
