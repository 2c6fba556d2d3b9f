package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/config"
	"github.com/smallbiznis/paysettle/internal/dbtest"
	finalizerdomain "github.com/smallbiznis/paysettle/internal/finalizer/domain"
	fulfillmentservice "github.com/smallbiznis/paysettle/internal/fulfillment/service"
	obsmetrics "github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/paysettle/internal/payment/repository"
	reconciliationdomain "github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	schedtesting "github.com/smallbiznis/paysettle/internal/scheduler/testing"
	"github.com/smallbiznis/paysettle/pkg/db/pagination"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tickNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type mockFinalizer struct {
	mock.Mock
}

func (m *mockFinalizer) FinalizeIfNeeded(ctx context.Context, intentID snowflake.ID) (finalizerdomain.Result, error) {
	args := m.Called(ctx, intentID)
	return args.Get(0).(finalizerdomain.Result), args.Error(1)
}

func (m *mockFinalizer) FinalizePaymentIntent(ctx context.Context, intentID snowflake.ID, approverID *string) (finalizerdomain.Result, error) {
	args := m.Called(ctx, intentID, approverID)
	return args.Get(0).(finalizerdomain.Result), args.Error(1)
}

func (m *mockFinalizer) ResolveSubscriptionMonths(ctx context.Context, db *gorm.DB, req finalizerdomain.MonthsRequest) (int, error) {
	args := m.Called(ctx, db, req)
	return args.Int(0), args.Error(1)
}

type mockReconciliation struct {
	mock.Mock
}

func (m *mockReconciliation) RunReconciliation(ctx context.Context, req reconciliationdomain.RunRequest) (*reconciliationdomain.RunSummary, error) {
	args := m.Called(ctx, req)
	summary, _ := args.Get(0).(*reconciliationdomain.RunSummary)
	return summary, args.Error(1)
}

func (m *mockReconciliation) ManualReconcile(ctx context.Context, req reconciliationdomain.ManualReconcileRequest) (snowflake.ID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *mockReconciliation) GetReconciliationReport(ctx context.Context, filter reconciliationdomain.ReportFilter, page pagination.Pagination) (*reconciliationdomain.Report, error) {
	args := m.Called(ctx, filter, page)
	report, _ := args.Get(0).(*reconciliationdomain.Report)
	return report, args.Error(1)
}

func (m *mockReconciliation) ExportReport(ctx context.Context, filter reconciliationdomain.ReportFilter, w io.Writer) error {
	return m.Called(ctx, filter, w).Error(0)
}

type fakeLock struct {
	locker *fakeLocker
}

func (l fakeLock) Refresh(context.Context) error {
	l.locker.refreshes.Add(1)
	return l.locker.refreshErr
}

func (l fakeLock) Release(context.Context) error {
	l.locker.released.Store(true)
	return nil
}

type fakeLocker struct {
	err        error
	refreshErr error
	refreshes  atomic.Int32
	released   atomic.Bool
}

func (l *fakeLocker) Obtain(context.Context, string) (Lock, error) {
	if l.err != nil {
		return nil, l.err
	}
	return fakeLock{locker: l}, nil
}

type fixture struct {
	sched     *Scheduler
	db        *gorm.DB
	clock     *clock.FakeClock
	finalizer *mockFinalizer
	recon     *mockReconciliation
	registry  *prometheus.Registry
	runtime   *config.RuntimeConfigHolder
}

func newFixture(t *testing.T, cfg config.RuntimeConfig, locker Locker) *fixture {
	t.Helper()

	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)
	obsmetrics.ResetHealingMetricsForTest()
	healing := obsmetrics.HealingWithConfig(obsmetrics.Config{ServiceName: "paysettle", Environment: "test"})

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(tickNow)
	runtime := config.NewStaticRuntimeConfigHolder(cfg)
	finalizer := &mockFinalizer{}
	recon := &mockReconciliation{}

	sched, err := New(Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Runtime:        runtime,
		Payments:       paymentrepository.Provide(),
		Finalizer:      finalizer,
		Documents:      fulfillmentservice.NewService(fulfillmentservice.Params{Log: zap.NewNop(), GenID: node, Clock: clk}),
		Reconciliation: recon,
		Locker:         locker,
		Metrics:        healing,
		Clock:          clk,
	})
	require.NoError(t, err)

	return &fixture{sched: sched, db: db, clock: clk, finalizer: finalizer, recon: recon, registry: registry, runtime: runtime}
}

func testRuntimeConfig() config.RuntimeConfig {
	cfg := config.DefaultRuntimeConfig()
	cfg.Healing.InitialDelay = 0
	cfg.Healing.MinAge = 5 * time.Minute
	cfg.Healing.BatchSize = 10
	return cfg
}

func (f *fixture) insertIntent(t *testing.T, id int64, purpose paymentdomain.PurposeKind, finalized bool, age time.Duration) paymentdomain.PaymentIntent {
	t.Helper()
	user, doc := snowflake.ID(500), snowflake.ID(600+id)
	intent := paymentdomain.PaymentIntent{
		ID:          snowflake.ID(id),
		Provider:    paymentdomain.ProviderA,
		Purpose:     purpose,
		Status:      paymentdomain.IntentStatusSuccess,
		Amount:      decimal.NewFromInt(100),
		Currency:    "KES",
		UserID:      &user,
		IsFinalized: finalized,
		CreatedAt:   tickNow.Add(-age),
		UpdatedAt:   tickNow,
	}
	if purpose == paymentdomain.PurposeLegalDocumentPurchase {
		intent.LegalDocumentID = &doc
	}
	require.NoError(t, f.db.Create(&intent).Error)
	require.NoError(t, schedtesting.NewIntentAger(f.db).AgeIntent(context.Background(), intent.ID, tickNow, age))
	return intent
}

func jobResult(t *testing.T, res TickResult, job string) JobResult {
	t.Helper()
	for _, r := range res.Jobs {
		if r.Job == job {
			return r
		}
	}
	t.Fatalf("job %s did not run", job)
	return JobResult{}
}

func TestTickHealsFinalizationWithItemIsolation(t *testing.T) {
	f := newFixture(t, testRuntimeConfig(), nil)
	for _, id := range []int64{1, 2, 3} {
		f.insertIntent(t, id, paymentdomain.PurposeProductPurchase, false, 10*time.Minute)
	}
	f.insertIntent(t, 4, paymentdomain.PurposeProductPurchase, false, time.Minute)

	f.finalizer.On("FinalizeIfNeeded", mock.Anything, snowflake.ID(1)).Return(finalizerdomain.Result{IntentID: 1, Finalized: true}, nil).Once()
	f.finalizer.On("FinalizeIfNeeded", mock.Anything, snowflake.ID(2)).Return(finalizerdomain.Result{IntentID: 2, Finalized: true}, nil).Once()
	f.finalizer.On("FinalizeIfNeeded", mock.Anything, snowflake.ID(3)).
		Return(finalizerdomain.Result{IntentID: 3}, fmt.Errorf("%w: apply: boom", errs.ErrDomainEffect)).Once()

	res := f.sched.Tick(context.Background())

	assert.Empty(t, res.Skipped)
	assert.Equal(t, JobResult{Job: JobHealFinalization, Attempted: 3, Succeeded: 2, Failed: 1}, jobResult(t, res, JobHealFinalization))
	f.finalizer.AssertExpectations(t)
	f.finalizer.AssertNotCalled(t, "FinalizeIfNeeded", mock.Anything, snowflake.ID(4))

	labels := func(outcome string) map[string]string {
		return map[string]string{"service": "paysettle", "env": "test", "job": JobHealFinalization, "outcome": outcome}
	}
	assert.Equal(t, float64(3), counterValue(t, f.registry, "paysettle_healing_items_total", labels(obsmetrics.HealingOutcomeAttempted)))
	assert.Equal(t, float64(2), counterValue(t, f.registry, "paysettle_healing_items_total", labels(obsmetrics.HealingOutcomeSucceeded)))
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_items_total", labels(obsmetrics.HealingOutcomeFailed)))
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_job_errors_total", map[string]string{
		"service": "paysettle", "env": "test", "job": JobHealFinalization, "reason": obsmetrics.ReasonDomainEffect,
	}))
}

func TestTickHealsDocumentFulfillmentOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testRuntimeConfig(), nil)
	intent := f.insertIntent(t, 7, paymentdomain.PurposeLegalDocumentPurchase, true, 10*time.Minute)

	res := f.sched.Tick(ctx)
	assert.Equal(t, JobResult{Job: JobHealFulfillment, Attempted: 1, Succeeded: 1}, jobResult(t, res, JobHealFulfillment))
	assert.Equal(t, int64(1), dbtest.Count(t, f.db, "document_ownerships", "user_id = ? AND document_id = ?", *intent.UserID, *intent.LegalDocumentID))

	res = f.sched.Tick(ctx)
	assert.Equal(t, JobResult{Job: JobHealFulfillment}, jobResult(t, res, JobHealFulfillment))
	assert.Equal(t, int64(1), dbtest.Count(t, f.db, "document_ownerships", ""))
}

func TestTickSkipsOverlap(t *testing.T) {
	f := newFixture(t, testRuntimeConfig(), nil)
	f.insertIntent(t, 1, paymentdomain.PurposeProductPurchase, false, 10*time.Minute)

	f.sched.running.Store(true)
	res := f.sched.Tick(context.Background())

	assert.Equal(t, obsmetrics.TickSkippedOverlap, res.Skipped)
	assert.Empty(t, res.Jobs)
	f.finalizer.AssertNotCalled(t, "FinalizeIfNeeded", mock.Anything, mock.Anything)
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_tick_skipped_total", map[string]string{
		"service": "paysettle", "env": "test", "reason": obsmetrics.TickSkippedOverlap,
	}))
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	f := newFixture(t, testRuntimeConfig(), &fakeLocker{err: ErrLockHeld})

	res := f.sched.Tick(context.Background())

	assert.Equal(t, obsmetrics.TickSkippedLockHeld, res.Skipped)
	assert.False(t, f.sched.running.Load())
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_tick_skipped_total", map[string]string{
		"service": "paysettle", "env": "test", "reason": obsmetrics.TickSkippedLockHeld,
	}))
}

func TestTickReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	f := newFixture(t, testRuntimeConfig(), locker)

	res := f.sched.Tick(context.Background())

	assert.Empty(t, res.Skipped)
	assert.Len(t, res.Jobs, 2)
	assert.True(t, locker.released.Load())
}

func TestTickRefreshesLockBeforeEachJob(t *testing.T) {
	locker := &fakeLocker{}
	f := newFixture(t, testRuntimeConfig(), locker)

	res := f.sched.Tick(context.Background())

	assert.Len(t, res.Jobs, 2)
	assert.Equal(t, int32(1), locker.refreshes.Load())
	assert.True(t, locker.released.Load())
}

func TestTickStopsWhenLockIsLost(t *testing.T) {
	locker := &fakeLocker{refreshErr: ErrLockHeld}
	f := newFixture(t, testRuntimeConfig(), locker)

	res := f.sched.Tick(context.Background())

	require.Len(t, res.Jobs, 1)
	assert.Equal(t, JobHealFinalization, res.Jobs[0].Job)
	assert.True(t, locker.released.Load())
}

func TestTickStopsBatchWhenCancelled(t *testing.T) {
	f := newFixture(t, testRuntimeConfig(), nil)
	for _, id := range []int64{1, 2, 3, 4, 5} {
		f.insertIntent(t, id, paymentdomain.PurposeProductPurchase, false, 10*time.Minute)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.finalizer.On("FinalizeIfNeeded", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			// The in-flight item keeps running on a detached context.
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(finalizerdomain.Result{Finalized: true}, nil)

	res := f.sched.Tick(ctx)

	f.finalizer.AssertNumberOfCalls(t, "FinalizeIfNeeded", 1)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, JobResult{Job: JobHealFinalization, Attempted: 1, Succeeded: 1}, res.Jobs[0])
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_job_errors_total", map[string]string{
		"service": "paysettle", "env": "test", "job": JobHealFinalization, "reason": obsmetrics.ReasonDeadlineExceeded,
	}))
}

func TestTickSkipsWhenDisabled(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.Healing.Enabled = false
	f := newFixture(t, cfg, nil)

	res := f.sched.Tick(context.Background())
	assert.Equal(t, obsmetrics.TickSkippedDisabled, res.Skipped)

	cfg.Healing.Enabled = true
	require.NoError(t, f.runtime.Set(cfg))
	res = f.sched.Tick(context.Background())
	assert.Empty(t, res.Skipped)
}

func TestTickRunsAutoReconciliationOnInterval(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.Reconciliation.AutoEnabled = true
	cfg.Reconciliation.Interval = time.Hour
	cfg.Reconciliation.Lookback = 24 * time.Hour
	f := newFixture(t, cfg, nil)

	f.recon.On("RunReconciliation", mock.Anything, mock.MatchedBy(func(req reconciliationdomain.RunRequest) bool {
		now := f.clock.Now()
		return req.Mode == reconciliationdomain.RunModeAuto &&
			req.To.Equal(now) &&
			req.From.Equal(now.Add(-24*time.Hour)) &&
			req.OperatorID != nil && *req.OperatorID == "system"
	})).Return(&reconciliationdomain.RunSummary{RunID: 99, Total: 3}, nil).Twice()

	ctx := context.Background()
	res := f.sched.Tick(ctx)
	assert.Equal(t, JobResult{Job: JobAutoReconciliation, Attempted: 1, Succeeded: 1}, jobResult(t, res, JobAutoReconciliation))

	f.clock.Advance(30 * time.Minute)
	res = f.sched.Tick(ctx)
	assert.Len(t, res.Jobs, 2)

	f.clock.Advance(30 * time.Minute)
	res = f.sched.Tick(ctx)
	assert.Len(t, res.Jobs, 3)
	f.recon.AssertExpectations(t)
}

func TestTickCountsAutoReconciliationFailure(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.Reconciliation.AutoEnabled = true
	f := newFixture(t, cfg, nil)
	f.recon.On("RunReconciliation", mock.Anything, mock.Anything).Return(nil, errors.New("store down")).Once()

	res := f.sched.Tick(context.Background())

	assert.Equal(t, JobResult{Job: JobAutoReconciliation, Attempted: 1, Failed: 1}, jobResult(t, res, JobAutoReconciliation))
	assert.Equal(t, float64(1), counterValue(t, f.registry, "paysettle_healing_job_errors_total", map[string]string{
		"service": "paysettle", "env": "test", "job": JobAutoReconciliation, "reason": obsmetrics.ReasonUnknown,
	}))
}

func TestRunForeverStopsDuringInitialDelay(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.Healing.InitialDelay = time.Hour
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sched.RunForever(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not stop after cancel")
	}
	_, found := gatherCounter(f.registry, "paysettle_healing_job_runs_total", map[string]string{
		"service": "paysettle", "env": "test", "job": JobHealFinalization,
	})
	assert.False(t, found)
}

func TestRunForeverTicksOnInterval(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.Healing.Interval = 5 * time.Millisecond
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sched.RunForever(ctx)
	}()

	labels := map[string]string{"service": "paysettle", "env": "test", "job": JobHealFinalization}
	require.Eventually(t, func() bool {
		v, _ := gatherCounter(f.registry, "paysettle_healing_job_runs_total", labels)
		return v >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetHealingMetricsForTest()
	}
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	v, found := gatherCounter(registry, name, labels)
	if !found {
		t.Fatalf("metric %s with labels %v not found", name, labels)
	}
	return v
}

func gatherCounter(registry *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	metricFamilies, err := registry.Gather()
	if err != nil {
		return 0, false
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if labelsMatch(metric, labels) && metric.Counter != nil {
				return metric.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
