// internal/bank/handshake_test.go
package bank

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
)

// ==========================
// Fakes
// ==========================

type fakeGateway struct {
	mu          sync.Mutex
	openErr     error
	openGate    chan struct{}
	redirectURL string
	results     []Result
	checkErrs   []error
	openCalls   int
	checkCalls  int
	manualCalls int
}

// OpenSession blocks on openGate, when set, outside the fake's mutex so
// tests can hold a session open mid-flight without freezing the counters.
func (f *fakeGateway) OpenSession(ctx context.Context, applicationID string) (string, error) {
	f.mu.Lock()
	f.openCalls++
	gate := f.openGate
	openErr := f.openErr
	redirectURL := f.redirectURL
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if openErr != nil {
		return "", openErr
	}
	return redirectURL, nil
}

func (f *fakeGateway) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCalls
}

// CheckStatus walks the scripted results, repeating the last entry once
// the script is exhausted.
func (f *fakeGateway) CheckStatus(ctx context.Context, applicationID string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.checkCalls
	f.checkCalls++
	if i < len(f.checkErrs) && f.checkErrs[i] != nil {
		return "", f.checkErrs[i]
	}
	if len(f.results) == 0 {
		return ResultPending, nil
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fakeGateway) ManualConfirm(ctx context.Context, applicationID string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manualCalls++
	if len(f.results) == 0 {
		return ResultPending, nil
	}
	return f.results[len(f.results)-1], nil
}

func (f *fakeGateway) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

type fakeLifecycle struct {
	mu       sync.Mutex
	confirms int
}

// ConfirmBankActivation applies the first confirmation and reports a
// reconciliation conflict for every duplicate, like the real service.
func (f *fakeLifecycle) ConfirmBankActivation(ctx context.Context, applicationID, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms++
	if f.confirms > 1 {
		return errors.NewReconciliationConflictError(applicationID, "funded")
	}
	return nil
}

func (f *fakeLifecycle) confirmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirms
}

// ==========================
// Test Helper Functions
// ==========================

func testConfig() Config {
	return Config{
		PollInterval:    10 * time.Millisecond,
		StatusTimeout:   100 * time.Millisecond,
		MaxPollFailures: 3,
	}
}

func newTestHandshake(t *testing.T, gw *fakeGateway, lc *fakeLifecycle) (*Handshake, *SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSessionStore(client, time.Minute)

	h := NewHandshake("app-1", gw, store, lc, testConfig(), logger.NewNoOpLogger(), nil)
	t.Cleanup(h.Close)
	return h, store
}

func waitResolved(t *testing.T, h *Handshake) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not finish in time")
	}
}

// ==========================
// Protocol Tests
// ==========================

func TestHandshake_HappyPath(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultPending, ResultPending, ResultSuccess},
	}
	lc := &fakeLifecycle{}
	h, store := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	assert.Equal(t, StateConfirming, h.State())

	url, err := h.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/activate/abc", url)
	assert.Equal(t, StateWaiting, h.State())

	session, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	require.NotNil(t, session, "session persisted while waiting")

	waitResolved(t, h)

	assert.Equal(t, StateSuccess, h.State())
	assert.Equal(t, 1, lc.confirmCount())

	session, err = store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Nil(t, session, "session discarded on resolution")
}

func TestHandshake_NoPollsAfterTerminal(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultSuccess},
	}
	h, _ := newTestHandshake(t, gw, &fakeLifecycle{})

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)
	waitResolved(t, h)

	calls := gw.checkCount()
	time.Sleep(5 * testConfig().PollInterval)
	assert.Equal(t, calls, gw.checkCount(), "no status checks after resolution")
}

func TestHandshake_ConfirmFailureStaysConfirming(t *testing.T) {
	gw := &fakeGateway{openErr: errors.NewGatewayUnavailableError("open_session", assert.AnError)}
	h, _ := newTestHandshake(t, gw, &fakeLifecycle{})

	require.NoError(t, h.Begin())
	url, err := h.Confirm(context.Background())

	assert.Empty(t, url)
	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSessionOpenFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Equal(t, StateConfirming, h.State(), "user can retry confirmation")

	// Retry succeeds once the gateway recovers.
	gw.mu.Lock()
	gw.openErr = nil
	gw.redirectURL = "https://bank.example/activate/retry"
	gw.mu.Unlock()

	url, err = h.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/activate/retry", url)
	assert.Equal(t, StateWaiting, h.State())
}

func TestHandshake_BankDeclineLeavesLifecycleAlone(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultFailed},
	}
	lc := &fakeLifecycle{}
	h, _ := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)
	waitResolved(t, h)

	assert.Equal(t, StateError, h.State())
	assert.Equal(t, 0, lc.confirmCount(), "a decline never mutates the lifecycle")
}

func TestHandshake_PollFailuresExhausted(t *testing.T) {
	transient := errors.NewGatewayUnavailableError("check_status", assert.AnError)
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		checkErrs:   []error{transient, transient, transient, transient, transient},
	}
	h, _ := newTestHandshake(t, gw, &fakeLifecycle{})

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)
	waitResolved(t, h)

	assert.Equal(t, StateError, h.State())
	assert.GreaterOrEqual(t, gw.checkCount(), testConfig().MaxPollFailures)
}

func TestHandshake_ManualCheckAfterResolutionAnswersFromMemory(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultSuccess},
	}
	lc := &fakeLifecycle{}
	h, _ := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)
	waitResolved(t, h)

	result, err := h.ManualCheck(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, 0, gw.manualCalls, "terminal handshakes answer without a gateway call")
	assert.Equal(t, 1, lc.confirmCount(), "reconciliation stays exactly-once")
}

func TestHandshake_ManualCheckRace(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultSuccess},
	}
	lc := &fakeLifecycle{}
	h, _ := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)

	// Race a manual check against the poll loop; whichever observes the
	// terminal result second must find it already reconciled.
	_, _ = h.ManualCheck(context.Background())
	waitResolved(t, h)

	assert.Equal(t, StateSuccess, h.State())
	assert.Equal(t, 1, lc.confirmCount())
}

func TestHandshake_Abandon(t *testing.T) {
	gw := &fakeGateway{redirectURL: "https://bank.example/activate/abc"}
	lc := &fakeLifecycle{}
	h, store := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Abandon(context.Background()))

	assert.Equal(t, StateIdle, h.State())
	assert.Empty(t, h.RedirectURL())
	waitResolved(t, h)

	session, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Nil(t, session, "abandonment drops the session")
	assert.Equal(t, 0, lc.confirmCount())

	calls := gw.checkCount()
	time.Sleep(5 * testConfig().PollInterval)
	assert.Equal(t, calls, gw.checkCount(), "no polling after abandonment")
}

func TestHandshake_ManualCheckAfterAbandon(t *testing.T) {
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		results:     []Result{ResultSuccess},
	}
	lc := &fakeLifecycle{}
	h, _ := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())
	_, err := h.Confirm(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Abandon(context.Background()))

	// The escape hatch still works after abandoning the redirect flow.
	result, err := h.ManualCheck(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, StateSuccess, h.State())
	assert.Equal(t, 1, lc.confirmCount())
}

func TestHandshake_BeginTwiceAndGuards(t *testing.T) {
	gw := &fakeGateway{redirectURL: "https://bank.example/activate/abc"}
	h, _ := newTestHandshake(t, gw, &fakeLifecycle{})

	require.NoError(t, h.Begin())
	require.NoError(t, h.Begin(), "re-entrant begin is a no-op")

	// Confirm before begin on a fresh handshake is refused.
	h2, _ := newTestHandshake(t, gw, &fakeLifecycle{})
	_, err := h2.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGuardViolation, errors.CodeOf(err))
}

func TestHandshake_ConcurrentConfirmRefused(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		openGate:    gate,
		results:     []Result{ResultSuccess},
	}
	lc := &fakeLifecycle{}
	h, _ := newTestHandshake(t, gw, lc)

	require.NoError(t, h.Begin())

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.Confirm(context.Background())
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return gw.openCount() == 1 },
		time.Second, time.Millisecond, "first confirmation reaches the gateway")

	// Second confirmation while the first holds the gateway open.
	_, err := h.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGuardViolation, errors.CodeOf(err))
	assert.Equal(t, 1, gw.openCount(), "only one bank session is ever opened")

	close(gate)
	require.NoError(t, <-firstDone)
	assert.Equal(t, StateWaiting, h.State())

	waitResolved(t, h)
	assert.Equal(t, StateSuccess, h.State())
	assert.Equal(t, 1, lc.confirmCount())
}

func TestHandshake_AbandonDuringConfirmDropsSession(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{
		redirectURL: "https://bank.example/activate/abc",
		openGate:    gate,
	}
	h, store := newTestHandshake(t, gw, &fakeLifecycle{})

	require.NoError(t, h.Begin())

	confirmDone := make(chan error, 1)
	go func() {
		_, err := h.Confirm(context.Background())
		confirmDone <- err
	}()
	require.Eventually(t, func() bool { return gw.openCount() == 1 },
		time.Second, time.Millisecond)

	require.NoError(t, h.Abandon(context.Background()))
	close(gate)

	err := <-confirmDone
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGuardViolation, errors.CodeOf(err))
	assert.Equal(t, StateIdle, h.State())

	session, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Nil(t, session, "session opened after abandonment is dropped")

	calls := gw.checkCount()
	time.Sleep(5 * testConfig().PollInterval)
	assert.Equal(t, calls, gw.checkCount(), "no poll loop after a superseded confirmation")
}
