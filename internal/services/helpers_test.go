package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/config"
	"github.com/sjperalta/fintera-ledger/internal/jobs"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/storage"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	repos    *repository.Repositories
	accounts map[string]*models.Account
	clock    *clock.Fake
	store    *storage.LocalStorage
	svc      *Services

	mu     sync.Mutex
	alerts []alerting.Alert
}

func newFixture(t *testing.T, configure ...func(*config.Config)) *fixture {
	t.Helper()

	f := &fixture{
		db:    testutil.NewDB(t),
		clock: clock.NewFake(testEpoch),
	}
	f.repos = repository.NewRepositories(f.db)
	f.accounts = testutil.SeedChart(t, f.db)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f.store = store

	cfg := &config.Config{
		Reconciliation: config.ReconciliationConfig{
			DuplicateThreshold: 0.95,
			Epsilon:            0.001,
			PageSize:           2,
		},
	}
	for _, c := range configure {
		c(cfg)
	}

	notifier := alerting.NotifierFunc(func(_ context.Context, a alerting.Alert) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.alerts = append(f.alerts, a)
	})
	engine := automation.NewEngine(automation.StoresFrom(f.repos),
		automation.WithClock(f.clock),
		automation.WithNotifier(notifier),
	)
	t.Cleanup(engine.Close)

	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)

	f.svc = NewServices(f.repos, engine, store, notifier, worker, cfg, f.clock)
	return f
}

func (f *fixture) alertsSeen() []alerting.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alerting.Alert(nil), f.alerts...)
}

// manualEntry posts (or drafts, with review) a two-line entry
func (f *fixture) manualEntry(t *testing.T, debit, credit, amount, description string, review bool) *models.JournalEntry {
	t.Helper()
	entry, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, ManualEntryInput{
		Date:           testEpoch,
		Description:    description,
		RequiresReview: review,
		Lines: []ManualLineInput{
			{AccountCode: debit, Debit: testutil.Dec(amount)},
			{AccountCode: credit, Credit: testutil.Dec(amount)},
		},
	})
	require.NoError(t, err)
	return entry
}

func (f *fixture) balance(t *testing.T, code string) string {
	t.Helper()
	return testutil.Balance(t, f.db, f.accounts[code].ID)
}

func withTenant(id string) context.Context {
	return tenant.WithTenantID(context.Background(), id)
}
