package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vault/internal/cache"
	"vault/internal/ledger"
	"vault/internal/reconcile"
)

// ErrStagingExpired means the staging token is unknown or timed out.
var ErrStagingExpired = errors.New("staged import not found or expired")

// StagingTTL is how long a staged import stays available for commit.
const StagingTTL = 30 * time.Minute

// StageResult is a staged import plus the token that commits it.
type StageResult struct {
	Token string `json:"token"`
	reconcile.Staged
}

// CommitResult describes a committed import.
type CommitResult struct {
	Result ledger.Result `json:"result"`
	Left   int           `json:"left"`
}

// ImportService stages parsed candidates for review, then commits the
// reviewed batch in one ledger command.
type ImportService struct {
	vault  *VaultService
	staged cache.Cache[reconcile.Staged]
}

func NewImportService(vault *VaultService, staged cache.Cache[reconcile.Staged]) *ImportService {
	if staged == nil {
		staged = cache.NewLRUCache[reconcile.Staged](32, StagingTTL)
	}
	return &ImportService{vault: vault, staged: staged}
}

// Stage types and validates the candidates and flags duplicates against the
// current ledger. Nothing is written.
func (s *ImportService) Stage(ctx context.Context, cands []reconcile.Candidate) StageResult {
	staged := reconcile.Stage(cands, s.vault.Snapshot())
	token := uuid.NewString()
	s.staged.Set(token, staged)

	slog.InfoContext(ctx, "Import staged",
		"token", token,
		"candidates", len(cands),
		"rejected", staged.Rejected,
		"duplicates", staged.Duplicates)
	return StageResult{Token: token, Staged: staged}
}

// Commit ingests a staged import. The token is consumed even when nothing
// was left to ingest.
func (s *ImportService) Commit(ctx context.Context, token string, opts reconcile.CommitOptions) (CommitResult, error) {
	staged, ok := s.staged.Get(token)
	if !ok {
		return CommitResult{}, ErrStagingExpired
	}
	s.staged.Delete(token)

	batch, left := staged.Batch(opts)
	res, err := s.vault.Execute(ctx, batch)
	if err != nil {
		return CommitResult{Result: res, Left: left}, fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Import committed",
		"token", token,
		"expenses", len(batch.Expenses),
		"incomes", len(batch.Incomes),
		"accounts", len(batch.Accounts),
		"left", left,
		"skipped", res.Skipped)
	return CommitResult{Result: res, Left: left}, nil
}

// Ingest stages and commits in one step, skipping duplicates.
func (s *ImportService) Ingest(ctx context.Context, cands []reconcile.Candidate) (CommitResult, error) {
	staged := reconcile.Stage(cands, s.vault.Snapshot())
	batch, left := staged.Batch(reconcile.CommitOptions{})
	res, err := s.vault.Execute(ctx, batch)
	if err != nil {
		return CommitResult{Result: res, Left: left}, fmt.Errorf("ingest: %w", err)
	}
	return CommitResult{Result: res, Left: left}, nil
}
