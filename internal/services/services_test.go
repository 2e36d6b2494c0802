package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"vault/internal/cloud"
	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/reconcile"
	"vault/internal/storage"
	"vault/internal/suggest"
)

var testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu        sync.Mutex
	revisions []int64
	err       error
	closeErr  error
}

func (f *fakePublisher) PublishSnapshotSync(_ context.Context, revision int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revisions = append(f.revisions, revision)
	return nil
}

func (f *fakePublisher) Close() error { return f.closeErr }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.revisions)
}

type failingTransport struct{ err error }

func (failingTransport) Name() string { return "failing" }
func (f failingTransport) Upload(context.Context, string, []byte) (time.Time, error) {
	return time.Time{}, &core.TransportError{Backend: "failing", Op: "upload", Err: f.err}
}
func (f failingTransport) Download(context.Context, string) ([]byte, bool, error) {
	return nil, false, &core.TransportError{Backend: "failing", Op: "download", Err: f.err}
}

func newTestVault(t *testing.T, repo storage.Repository, pub SyncPublisher) *VaultService {
	t.Helper()
	n := 0
	store := ledger.NewStore(
		ledger.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		ledger.WithClock(func() time.Time { return testNow }),
	)
	return NewVaultService(ledger.NewDispatcher(store), repo, pub)
}

func mustExecute(t *testing.T, v *VaultService, cmd ledger.Command) ledger.Result {
	t.Helper()
	res, err := v.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", cmd.Name(), err)
	}
	return res
}

func addExpense(t *testing.T, v *VaultService, amount int64, merchant string) string {
	t.Helper()
	res := mustExecute(t, v, ledger.AddExpense{Expense: core.Expense{
		Amount:   amount,
		Date:     core.NewDate(2024, 5, 10),
		Category: core.Uncategorized,
		Merchant: merchant,
	}})
	if len(res.IDs) == 0 {
		t.Fatalf("AddExpense created no id")
	}
	return res.IDs[0]
}

func enableSync(t *testing.T, v *VaultService) {
	t.Helper()
	on := true
	mustExecute(t, v, ledger.UpdateSettings{Patch: ledger.SettingsPatch{IsCloudSyncEnabled: &on}})
}

func TestVaultService_ExecutePersists(t *testing.T) {
	repo := storage.NewMemoryRepository()
	v := newTestVault(t, repo, nil)

	addExpense(t, v, 450, "Swiggy")

	snap, found, err := repo.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("Load() found=%v err=%v", found, err)
	}
	if len(snap.Expenses) != 1 || snap.Expenses[0].Merchant != "Swiggy" {
		t.Fatalf("persisted expenses = %+v", snap.Expenses)
	}
	if snap.Revision != v.Snapshot().Revision {
		t.Errorf("persisted revision = %d, want %d", snap.Revision, v.Snapshot().Revision)
	}
}

func TestVaultService_RejectedCommandIsNotPersisted(t *testing.T) {
	repo := storage.NewMemoryRepository()
	v := newTestVault(t, repo, nil)

	_, err := v.Execute(context.Background(), ledger.AddExpense{Expense: core.Expense{Amount: -1}})
	if !core.IsValidation(err) {
		t.Fatalf("Execute() error = %v, want validation error", err)
	}
	if _, found, _ := repo.Load(context.Background()); found {
		t.Error("rejected command should not write a snapshot")
	}
}

func TestVaultService_Load(t *testing.T) {
	repo := storage.NewMemoryRepository()
	first := newTestVault(t, repo, nil)
	addExpense(t, first, 100, "Metro")
	addExpense(t, first, 200, "Metro")

	second := newTestVault(t, repo, nil)
	found, err := second.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("Load() found=%v err=%v", found, err)
	}
	if got := len(second.Snapshot().Expenses); got != 2 {
		t.Errorf("restored %d expenses, want 2", got)
	}
	if second.Snapshot().Revision < first.Snapshot().Revision {
		t.Errorf("restored revision %d behind %d", second.Snapshot().Revision, first.Snapshot().Revision)
	}
}

func TestVaultService_PublishesDirtyRevisionsWhenSyncEnabled(t *testing.T) {
	pub := &fakePublisher{}
	v := newTestVault(t, storage.NewMemoryRepository(), pub)

	addExpense(t, v, 100, "Metro")
	if pub.count() != 0 {
		t.Fatalf("published %d messages with sync disabled", pub.count())
	}

	enableSync(t, v)
	if pub.count() != 1 {
		t.Fatalf("settings change should publish, got %d", pub.count())
	}

	v.Notify(context.Background(), "Test", "Hello", "bookkeeping only", core.SeverityInfo)
	if pub.count() != 1 {
		t.Errorf("notifications should not publish, got %d", pub.count())
	}

	addExpense(t, v, 200, "Metro")
	if pub.count() != 2 {
		t.Errorf("expected 2 published revisions, got %d", pub.count())
	}
}

func TestVaultService_PublishFailureDoesNotFailCommand(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	v := newTestVault(t, storage.NewMemoryRepository(), pub)
	enableSync(t, v)

	if _, err := v.Execute(context.Background(), ledger.AddExpense{Expense: core.Expense{
		Amount: 10, Date: core.NewDate(2024, 5, 1), Category: core.Needs,
	}}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(v.Snapshot().Expenses) != 1 {
		t.Error("expense should be committed despite publish failure")
	}
}

func TestVaultService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := &VaultService{}
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("publisher error", func(t *testing.T) {
		service := NewVaultService(nil, storage.NewMemoryRepository(), &fakePublisher{closeErr: errors.New("boom")})
		err := service.Close()
		if err == nil || !strings.Contains(err.Error(), "amqp: boom") {
			t.Fatalf("Close() error = %v, want amqp: boom", err)
		}
	})
}

func TestSyncService_PushAndPull(t *testing.T) {
	ctx := context.Background()
	transport := cloud.NewMemory()

	repoA := storage.NewMemoryRepository()
	a := newTestVault(t, repoA, nil)
	addExpense(t, a, 700, "Amazon")
	sa := NewSyncService(a, transport, "token")
	sa.now = func() time.Time { return testNow }

	pushed, err := sa.Push(ctx)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if pushed.Revision != a.Snapshot().Revision || pushed.Backend != cloud.BackendMemory {
		t.Errorf("Push() = %+v", pushed)
	}
	if got := a.Snapshot().Settings.LastSyncedRevision; got != pushed.Revision {
		t.Errorf("LastSyncedRevision = %d, want %d", got, pushed.Revision)
	}
	if pushed.SnapshotID == "" || a.Snapshot().Settings.LastSyncedSnapshotID != pushed.SnapshotID {
		t.Errorf("LastSyncedSnapshotID = %q, want %q", a.Snapshot().Settings.LastSyncedSnapshotID, pushed.SnapshotID)
	}
	last, ok, err := repoA.LastUpload(ctx)
	if err != nil || !ok || last.Revision != pushed.Revision {
		t.Errorf("LastUpload() = %+v ok=%v err=%v", last, ok, err)
	}

	b := newTestVault(t, storage.NewMemoryRepository(), nil)
	sb := NewSyncService(b, transport, "token")
	pulled, err := sb.Pull(ctx, false)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !pulled.Found || pulled.RemoteRevision != pushed.Revision {
		t.Errorf("Pull() = %+v", pulled)
	}
	if exp := b.Snapshot().Expenses; len(exp) != 1 || exp[0].Merchant != "Amazon" {
		t.Errorf("pulled expenses = %+v", exp)
	}
	if b.Snapshot().Settings.LastSyncedRevision != b.Snapshot().Revision {
		t.Error("pull should leave no unsynced edits")
	}
}

func TestSyncService_PullWithoutRemote(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, v, 5, "Tea")
	s := NewSyncService(v, cloud.NewMemory(), "token")

	res, err := s.Pull(context.Background(), false)
	if err != nil || res.Found {
		t.Fatalf("Pull() = %+v, %v", res, err)
	}
	if len(v.Snapshot().Expenses) != 1 {
		t.Error("missing remote must not touch local state")
	}
}

func TestSyncService_PullConflict(t *testing.T) {
	ctx := context.Background()
	transport := cloud.NewMemory()

	remote := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, remote, 100, "Remote")
	addExpense(t, remote, 200, "Remote")
	if _, err := NewSyncService(remote, transport, "token").Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	local := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, local, 999, "Local")
	s := NewSyncService(local, transport, "token")

	_, err := s.Pull(ctx, false)
	if !errors.Is(err, core.ErrSyncConflict) {
		t.Fatalf("Pull() error = %v, want ErrSyncConflict", err)
	}
	if exp := local.Snapshot().Expenses; len(exp) != 1 || exp[0].Merchant != "Local" {
		t.Fatalf("conflicting pull modified local state: %+v", exp)
	}

	if _, err := s.Pull(ctx, true); err != nil {
		t.Fatalf("forced Pull() error = %v", err)
	}
	if got := len(local.Snapshot().Expenses); got != 2 {
		t.Errorf("forced pull restored %d expenses, want 2", got)
	}
}

func TestSyncService_PushFailure(t *testing.T) {
	repo := storage.NewMemoryRepository()
	v := newTestVault(t, repo, nil)
	addExpense(t, v, 100, "Metro")
	s := NewSyncService(v, failingTransport{err: errors.New("503 unavailable")}, "token")

	_, err := s.Push(context.Background())
	var terr *core.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Push() error = %v, want TransportError", err)
	}

	snap := v.Snapshot()
	if !snap.Settings.LastSynced.IsZero() {
		t.Error("failed push must not stamp lastSynced")
	}
	if len(snap.Notifications) == 0 || snap.Notifications[0].Title != "Cloud Sync Failed" {
		t.Errorf("expected a failure notification, got %+v", snap.Notifications)
	}
	history, err := repo.History(context.Background(), 5)
	if err != nil || len(history) != 1 || history[0].Status != storage.UploadFailed {
		t.Errorf("History() = %+v, %v", history, err)
	}
}

func TestSyncService_Disabled(t *testing.T) {
	s := NewSyncService(newTestVault(t, nil, nil), nil, "")
	if _, err := s.Push(context.Background()); !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("Push() error = %v, want ErrSyncDisabled", err)
	}
	if _, err := s.Pull(context.Background(), false); !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("Pull() error = %v, want ErrSyncDisabled", err)
	}
}

func TestConflicts(t *testing.T) {
	local := func(rev, synced int64, syncedID string) core.Snapshot {
		s := core.EmptySnapshot()
		s.Revision = rev
		s.Settings.LastSyncedRevision = synced
		s.Settings.LastSyncedSnapshotID = syncedID
		return s
	}
	remote := func(rev int64, id string) core.Snapshot {
		s := core.EmptySnapshot()
		s.Revision = rev
		s.SnapshotID = id
		return s
	}
	tests := []struct {
		name          string
		local, remote core.Snapshot
		want          bool
	}{
		{"fresh vault", local(0, 0, ""), remote(5, "snap-a"), false},
		{"local clean", local(3, 3, "snap-a"), remote(7, "snap-b"), false},
		{"remote unchanged", local(5, 3, "snap-a"), remote(3, "snap-a"), false},
		{"remote unchanged with another revision", local(9, 6, "snap-a"), remote(2, "snap-a"), false},
		{"both moved", local(5, 3, "snap-a"), remote(4, "snap-b"), true},
		{"other device at the synced revision", local(5, 3, "snap-a"), remote(3, "snap-b"), true},
		{"remote without identity", local(5, 3, "snap-a"), remote(3, ""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Conflicts(tt.local, tt.remote); got != tt.want {
				t.Errorf("Conflicts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncService_OtherDeviceAtSameRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	transport := cloud.NewMemory()

	a := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, a, 100, "Bakery")
	sa := NewSyncService(a, transport, "token")
	if _, err := sa.Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	addExpense(t, a, 250, "Unsynced")

	// A second device at the same revision overwrites the remote.
	b := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, b, 900, "Elsewhere")
	pushed, err := NewSyncService(b, transport, "token").Push(ctx)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if pushed.Revision != a.Snapshot().Settings.LastSyncedRevision {
		t.Fatalf("devices should share revision %d, got %d", a.Snapshot().Settings.LastSyncedRevision, pushed.Revision)
	}

	if _, err := sa.Pull(ctx, false); !errors.Is(err, core.ErrSyncConflict) {
		t.Fatalf("Pull() error = %v, want ErrSyncConflict", err)
	}
	if got := len(a.Snapshot().Expenses); got != 2 {
		t.Errorf("refused pull left %d expenses, want 2", got)
	}
}

func TestSyncService_RepeatPullOfUnchangedRemote(t *testing.T) {
	ctx := context.Background()
	transport := cloud.NewMemory()

	a := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, a, 100, "Bakery")
	pushed, err := NewSyncService(a, transport, "token").Push(ctx)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	b := newTestVault(t, storage.NewMemoryRepository(), nil)
	for range 4 {
		addExpense(t, b, 5, "Kiosk")
	}
	sb := NewSyncService(b, transport, "token")
	if _, err := sb.Pull(ctx, true); err != nil {
		t.Fatalf("forced Pull() error = %v", err)
	}
	if got := b.Snapshot().Settings.LastSyncedSnapshotID; got != pushed.SnapshotID {
		t.Fatalf("LastSyncedSnapshotID = %q, want %q", got, pushed.SnapshotID)
	}

	addExpense(t, b, 40, "Local edit")
	pulled, err := sb.Pull(ctx, false)
	if err != nil {
		t.Fatalf("Pull() of unchanged remote error = %v", err)
	}
	if pulled.SnapshotID != pushed.SnapshotID {
		t.Errorf("Pull() = %+v", pulled)
	}
	if exp := b.Snapshot().Expenses; len(exp) != 1 || exp[0].Merchant != "Bakery" {
		t.Errorf("pulled expenses = %+v", exp)
	}
}

type mapProvider struct {
	byMerchant map[string]core.Category
	fail       map[string]bool
}

func (mapProvider) Name() string { return "map" }

func (p mapProvider) Suggest(_ context.Context, req suggest.Request) (suggest.Suggestion, error) {
	if p.fail[req.Merchant] {
		return suggest.Suggestion{}, errors.New("quota exceeded")
	}
	c, ok := p.byMerchant[req.Merchant]
	if !ok {
		return suggest.Suggestion{}, suggest.ErrNoSuggestion
	}
	return suggest.Suggestion{Category: c, SubCategory: "Auto", Provider: "map"}, nil
}

func TestSuggestionService_Refine(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	swiggy := addExpense(t, v, 300, "Swiggy")
	addExpense(t, v, 800, "Rent Co")
	addExpense(t, v, 50, "Mystery")
	addExpense(t, v, 70, "Flaky")

	p := mapProvider{
		byMerchant: map[string]core.Category{"Swiggy": core.Wants, "Rent Co": core.Needs, "Flaky": core.Wants},
		fail:       map[string]bool{"Flaky": true},
	}
	s := NewSuggestionService(v, p, time.Second, 2)

	res, err := s.Refine(context.Background())
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if res.Candidates != 4 || res.Applied != 2 || res.NoMatch != 1 || res.Failed != 1 {
		t.Errorf("Refine() = %+v", res)
	}

	e, _ := v.Store().Expense(swiggy)
	if e.Category != core.Wants || !e.IsAIUpgraded || !e.IsConfirmed {
		t.Errorf("suggestion not applied: %+v", e)
	}
	if n := v.Snapshot().Notifications; len(n) == 0 || n[0].Title != "Suggestions Incomplete" {
		t.Errorf("expected failure notification, got %+v", n)
	}
}

func TestSuggestionService_ApplyUnknownExpense(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	s := NewSuggestionService(v, mapProvider{}, time.Second, 1)

	if _, err := s.Apply(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Apply() error = %v, want ErrNotFound", err)
	}
}

func TestSuggestionService_ProviderErrorIsTyped(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	id := addExpense(t, v, 70, "Flaky")
	s := NewSuggestionService(v, mapProvider{fail: map[string]bool{"Flaky": true}}, time.Second, 1)

	_, err := s.Apply(context.Background(), id)
	var perr *core.SuggestionProviderError
	if !errors.As(err, &perr) || perr.Provider != "map" {
		t.Fatalf("Apply() error = %v, want SuggestionProviderError", err)
	}
	e, _ := v.Store().Expense(id)
	if e.Category != core.Uncategorized {
		t.Error("failed suggestion must not change the expense")
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	mustExecute(t, v, ledger.AddRecurring{Item: core.RecurringItem{
		Amount:      1200,
		Category:    core.Needs,
		Merchant:    "Netflix",
		Frequency:   core.Monthly,
		NextDueDate: core.NewDate(2024, 3, 5),
	}})
	p := NewRecurringProcessor(v, time.Hour, 12)

	res, err := p.ProcessDue(context.Background(), testNow)
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if len(res.IDs) != 3 {
		t.Errorf("materialized %d bills, want 3 (March, April, May)", len(res.IDs))
	}
	snap := v.Snapshot()
	if len(snap.Bills) != 3 {
		t.Fatalf("bills = %d, want 3", len(snap.Bills))
	}
	if next := snap.RecurringItems[0].NextDueDate; !next.After(core.DateOf(testNow)) {
		t.Errorf("nextDueDate %s should be after today", next)
	}

	again, err := p.ProcessDue(context.Background(), testNow)
	if err != nil || len(again.IDs) != 0 {
		t.Errorf("second run materialized %v, err %v", again.IDs, err)
	}
}

func TestRecurringProcessor_StartStop(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	p := NewRecurringProcessor(v, time.Hour, 0)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
	if !p.IsRunning() {
		t.Error("processor should be running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}

func TestImportService_StageAndCommit(t *testing.T) {
	v := newTestVault(t, storage.NewMemoryRepository(), nil)
	addExpense(t, v, 500, "Starbucks")
	s := NewImportService(v, nil)
	ctx := context.Background()

	staged := s.Stage(ctx, []reconcile.Candidate{
		{"entryType": "Expense", "amount": 500.0, "merchant": "Starbucks", "date": "2024-05-10"},
		{"entryType": "Expense", "amount": 120.0, "merchant": "Uber", "date": "2024-05-11"},
		{"entryType": "Income", "amount": 50000.0, "type": "Salary", "date": "2024-05-01"},
		{"entryType": "Expense", "amount": "abc", "date": "2024-05-11"},
	})
	if staged.Token == "" || staged.Duplicates != 1 || staged.Rejected != 1 {
		t.Fatalf("Stage() = %+v", staged)
	}
	if len(v.Snapshot().Expenses) != 1 {
		t.Fatal("staging must not write")
	}

	out, err := s.Commit(ctx, staged.Token, reconcile.CommitOptions{})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if out.Left != 2 {
		t.Errorf("Commit() left = %d, want 2", out.Left)
	}
	snap := v.Snapshot()
	if len(snap.Expenses) != 2 || len(snap.Incomes) != 1 {
		t.Errorf("after commit expenses=%d incomes=%d", len(snap.Expenses), len(snap.Incomes))
	}

	if _, err := s.Commit(ctx, staged.Token, reconcile.CommitOptions{}); !errors.Is(err, ErrStagingExpired) {
		t.Errorf("second Commit() error = %v, want ErrStagingExpired", err)
	}
}
