// internal/bank/handshake.go
package bank

import (
	"context"
	"sync"
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/config"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/metrics"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/observability"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// State is the handshake protocol state. It is independent of the
// application lifecycle status: a failed handshake leaves the application
// at bank approval for a human to decide.
type State string

const (
	StateIdle       State = "idle"
	StateConfirming State = "confirming"
	StateWaiting    State = "waiting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Lifecycle is the slice of the application service the handshake needs
// to reconcile a successful activation.
type Lifecycle interface {
	ConfirmBankActivation(ctx context.Context, applicationID, actor string) error
}

// Config carries the poller settings, resolved from the bank section of
// the service configuration.
type Config struct {
	PollInterval    time.Duration
	StatusTimeout   time.Duration
	MaxPollFailures int
}

func ConfigFrom(cfg config.BankConfig) Config {
	return Config{
		PollInterval:    config.GetDuration(cfg.PollInterval),
		StatusTimeout:   config.GetDuration(cfg.StatusTimeout),
		MaxPollFailures: cfg.MaxPollFailures,
	}
}

// Handshake drives the activation protocol for a single application:
// Idle -> Confirming -> Waiting -> Success or Error. Reconciliation into
// the lifecycle happens exactly once regardless of whether the poll loop
// or a manual check observes the terminal result first.
type Handshake struct {
	applicationID string
	gateway       Gateway
	sessions      *SessionStore
	lifecycle     Lifecycle
	obs           *observability.Observability
	logger        logger.Logger
	cfg           Config
	now           func() time.Time

	mu              sync.Mutex
	state           State
	redirectURL     string
	confirmInFlight bool
	cancelPoll      context.CancelFunc
	pollDone        chan struct{}
}

func NewHandshake(applicationID string, gateway Gateway, sessions *SessionStore, lc Lifecycle, cfg Config, log logger.Logger, obs *observability.Observability) *Handshake {
	return &Handshake{
		applicationID: applicationID,
		gateway:       gateway,
		sessions:      sessions,
		lifecycle:     lc,
		obs:           obs,
		logger: log.WithFields(map[string]interface{}{
			"applicationId": applicationID,
		}),
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		state: StateIdle,
	}
}

// State returns the current protocol state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// RedirectURL returns the bank redirect URL once a session is open.
func (h *Handshake) RedirectURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redirectURL
}

// Done reports poll-loop completion, letting callers assert that no
// further status checks happen after a terminal state or teardown.
func (h *Handshake) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pollDone == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.pollDone
}

// Begin moves Idle -> Confirming. No external call happens yet.
func (h *Handshake) Begin() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateIdle:
		h.state = StateConfirming
		return nil
	case StateConfirming:
		return nil
	default:
		return errors.NewGuardViolationError("handshakeBegin",
			"handshake already started, state: "+string(h.state))
	}
}

// Confirm opens the bank session. On gateway failure the handshake stays
// in Confirming and returns a retryable error; on success it records the
// redirect URL, persists the session, and starts the poll loop. Only one
// Confirm runs at a time: the gateway call happens outside the lock, so a
// concurrent call is refused instead of opening a second session and
// orphaning the first poll loop.
func (h *Handshake) Confirm(ctx context.Context) (string, error) {
	h.mu.Lock()
	if h.state != StateConfirming {
		state := h.state
		h.mu.Unlock()
		return "", errors.NewGuardViolationError("handshakeConfirm",
			"expected state confirming, got "+string(state))
	}
	if h.confirmInFlight {
		h.mu.Unlock()
		return "", errors.NewGuardViolationError("handshakeConfirm",
			"confirmation already in flight")
	}
	h.confirmInFlight = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.confirmInFlight = false
		h.mu.Unlock()
	}()

	redirectURL, err := h.gateway.OpenSession(ctx, h.applicationID)
	if err != nil {
		h.logger.Warn("Bank session open failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", errors.NewSessionOpenFailedError(h.applicationID, err)
	}

	session := &models.BankSession{
		ApplicationID: h.applicationID,
		RedirectURL:   redirectURL,
		OpenedAt:      h.now(),
	}
	if err := h.sessions.Save(ctx, session); err != nil {
		return "", err
	}

	h.mu.Lock()
	if h.state != StateConfirming {
		// Abandoned while the session was opening: drop it and refuse.
		state := h.state
		h.mu.Unlock()
		if derr := h.sessions.Delete(ctx, h.applicationID); derr != nil {
			h.logger.Warn("Failed to drop superseded bank session", map[string]interface{}{
				"error": derr.Error(),
			})
		}
		return "", errors.NewGuardViolationError("handshakeConfirm",
			"expected state confirming, got "+string(state))
	}
	h.state = StateWaiting
	h.redirectURL = redirectURL
	h.startPollingLocked()
	h.mu.Unlock()

	metrics.HandshakesActive.Inc()
	h.logger.Info("Bank session opened, polling for decision", map[string]interface{}{
		"pollInterval": h.cfg.PollInterval.String(),
	})
	return redirectURL, nil
}

// ManualCheck asks the bank to settle the session now. Terminal states
// answer from memory; otherwise the result funnels through the same
// reconcile path as the poll loop.
func (h *Handshake) ManualCheck(ctx context.Context) (Result, error) {
	h.mu.Lock()
	switch h.state {
	case StateSuccess:
		h.mu.Unlock()
		return ResultSuccess, nil
	case StateError:
		h.mu.Unlock()
		return ResultFailed, nil
	}
	h.mu.Unlock()

	checkCtx, cancel := context.WithTimeout(ctx, h.cfg.StatusTimeout)
	defer cancel()

	result, err := h.gateway.ManualConfirm(checkCtx, h.applicationID)
	if err != nil {
		return "", err
	}

	if result != ResultPending {
		h.reconcile(ctx, result)
	}
	return result, nil
}

// Abandon cancels an unresolved handshake: polling stops, the session is
// dropped, and the state returns to Idle. The application lifecycle is
// untouched, so the handshake can be restarted later.
func (h *Handshake) Abandon(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateIdle:
		h.mu.Unlock()
		return nil
	case StateSuccess, StateError:
		state := h.state
		h.mu.Unlock()
		return errors.NewGuardViolationError("handshakeAbandon",
			"handshake already resolved, state: "+string(state))
	}
	wasWaiting := h.state == StateWaiting
	h.state = StateIdle
	h.redirectURL = ""
	h.stopPollingLocked()
	h.mu.Unlock()

	if wasWaiting {
		metrics.HandshakesActive.Dec()
		if err := h.sessions.Delete(ctx, h.applicationID); err != nil {
			h.logger.Warn("Failed to drop abandoned bank session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	h.logger.Info("Bank handshake abandoned", nil)
	return nil
}

// Close stops the poll loop without changing the handshake state. Used on
// service shutdown.
func (h *Handshake) Close() {
	h.mu.Lock()
	h.stopPollingLocked()
	h.mu.Unlock()
}

func (h *Handshake) startPollingLocked() {
	pollCtx, cancel := context.WithCancel(context.Background())
	h.cancelPoll = cancel
	h.pollDone = make(chan struct{})
	go h.pollLoop(pollCtx, h.pollDone)
}

func (h *Handshake) stopPollingLocked() {
	if h.cancelPoll != nil {
		h.cancelPoll()
		h.cancelPoll = nil
	}
}

// pollLoop checks the session at the configured interval until a terminal
// result, too many consecutive failures, or cancellation.
func (h *Handshake) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolved := h.pollOnce(ctx, &failures)
			if resolved {
				return
			}
		}
	}
}

func (h *Handshake) pollOnce(ctx context.Context, failures *int) bool {
	checkCtx, cancel := context.WithTimeout(ctx, h.cfg.StatusTimeout)
	defer cancel()

	start := h.now()
	result, err := h.gateway.CheckStatus(checkCtx, h.applicationID)
	if h.obs != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.obs.RecordPollDuration(ctx, time.Since(start), outcome)
	}

	if err != nil {
		if ctx.Err() != nil {
			// Teardown, not a bank failure.
			return true
		}
		*failures++
		metrics.HandshakePolls.WithLabelValues("error").Inc()
		h.logger.Warn("Bank status poll failed", map[string]interface{}{
			"error":               err.Error(),
			"consecutiveFailures": *failures,
		})
		if h.cfg.MaxPollFailures > 0 && *failures >= h.cfg.MaxPollFailures {
			h.failOut(ctx)
			return true
		}
		return false
	}

	*failures = 0
	if result == ResultPending {
		metrics.HandshakePolls.WithLabelValues("pending").Inc()
		if err := h.sessions.Touch(ctx, h.applicationID, h.now()); err != nil {
			h.logger.Debug("Session touch failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return false
	}

	metrics.HandshakePolls.WithLabelValues(string(result)).Inc()
	return h.reconcile(ctx, result)
}

// failOut surfaces a handshake Error after repeated poll failures. The
// session is kept so a manual check can still settle the activation.
func (h *Handshake) failOut(ctx context.Context) {
	h.mu.Lock()
	if h.state != StateWaiting {
		h.mu.Unlock()
		return
	}
	h.state = StateError
	h.stopPollingLocked()
	h.mu.Unlock()

	metrics.HandshakesActive.Dec()
	metrics.HandshakeReconciliations.WithLabelValues("poll_exhausted").Inc()
	if h.obs != nil {
		h.obs.RecordHandshakeResolved(ctx, "poll_exhausted")
	}
	h.logger.Error("Bank status polling exhausted", map[string]interface{}{
		"maxPollFailures": h.cfg.MaxPollFailures,
	})
}

// reconcile applies a terminal bank result exactly once. Returns true when
// the handshake reached a terminal state.
func (h *Handshake) reconcile(ctx context.Context, result Result) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateSuccess || h.state == StateError {
		return true
	}
	wasWaiting := h.state == StateWaiting

	if result == ResultSuccess {
		if err := h.lifecycle.ConfirmBankActivation(ctx, h.applicationID, models.PartyBank); err != nil {
			if errors.CodeOf(err) != errors.ErrCodeReconciliationConflict {
				// Transient lifecycle failure: stay unresolved so the next
				// observation retries.
				h.logger.Error("Bank confirmation could not be applied", map[string]interface{}{
					"error": err.Error(),
				})
				return false
			}
			h.logger.Debug("Bank confirmation already reconciled", nil)
		}
		h.state = StateSuccess
	} else {
		h.state = StateError
	}

	h.stopPollingLocked()
	if wasWaiting {
		metrics.HandshakesActive.Dec()
	}
	metrics.HandshakeReconciliations.WithLabelValues(string(result)).Inc()
	if h.obs != nil {
		h.obs.RecordHandshakeResolved(ctx, string(result))
	}
	if err := h.sessions.Delete(ctx, h.applicationID); err != nil {
		h.logger.Warn("Failed to drop resolved bank session", map[string]interface{}{
			"error": err.Error(),
		})
	}

	h.logger.Info("Bank handshake resolved", map[string]interface{}{
		"result": string(result),
	})
	return true
}
