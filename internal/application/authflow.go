package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/osmpanel/internal/metrics"
)

// FlowStatus is a point-in-time view of the authorization flow.
type FlowStatus struct {
	ID           string
	State        model.FlowState
	AuthorizeURL string // Set while awaiting the user grant.
}

// AuthFlow drives the three-legged OAuth 1.0a handshake. At most one flow
// instance is active: Begin while a flow is in progress aborts the older one,
// whose pending call then returns model.ErrFlowCanceled.
type AuthFlow struct {
	provider driven.OAuthProvider
	cfg      model.OAuthConfig

	mu           sync.Mutex
	state        model.FlowState
	id           string // Current instance; empty when idle.
	requestToken model.TokenPair
	authorizeURL string
	cancel       context.CancelCauseFunc // Aborts the in-flight network step, if any.
}

// NewAuthFlow creates an idle AuthFlow.
func NewAuthFlow(provider driven.OAuthProvider, cfg model.OAuthConfig) *AuthFlow {
	return &AuthFlow{
		provider: provider,
		cfg:      cfg,
		state:    model.FlowIdle,
	}
}

// Status returns the current flow status.
func (f *AuthFlow) Status() FlowStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FlowStatus{ID: f.id, State: f.state, AuthorizeURL: f.authorizeURL}
}

// State returns the current flow state.
func (f *AuthFlow) State() model.FlowState {
	return f.Status().State
}

// Begin fetches a request token and returns the authorize URL the user has to
// open. On success the flow waits in AwaitingUserGrant for Complete.
func (f *AuthFlow) Begin(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.abortLocked("superseded")
	id := uuid.NewString()
	stepCtx, cancel := context.WithCancelCause(ctx)
	f.id = id
	f.state = model.FlowRequestingToken
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel(nil)

	slog.Info("authorization flow started", "flow_id", id)

	pair, err := f.provider.RequestToken(stepCtx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.id != id {
		return "", model.ErrFlowCanceled
	}
	f.cancel = nil

	if err != nil {
		if ctx.Err() != nil {
			f.resetLocked()
			metrics.AuthFlows.WithLabelValues("canceled").Inc()
			return "", ctx.Err()
		}
		return "", f.failLocked(model.StageRequestToken, model.ReasonTransport, err)
	}
	if pair.IsZero() {
		return "", f.failLocked(model.StageRequestToken, model.ReasonProtocol, errors.New("provider returned an empty request token"))
	}

	authURL, err := f.provider.AuthorizationURL(pair.Token)
	if err != nil {
		return "", f.failLocked(model.StageRequestToken, model.ReasonProtocol, err)
	}

	f.requestToken = pair
	f.authorizeURL = authURL
	f.state = model.FlowAwaitingUserGrant

	slog.Info("authorization awaiting user grant", "flow_id", id)
	return authURL, nil
}

// Complete validates the redirect back from the provider and exchanges the
// verifier for the access token pair.
func (f *AuthFlow) Complete(ctx context.Context, callbackURI string) (model.TokenPair, error) {
	f.mu.Lock()

	if f.state != model.FlowAwaitingUserGrant {
		state := f.state
		f.mu.Unlock()
		return model.TokenPair{}, &model.AuthorizationError{
			Stage:  model.StageCallback,
			Reason: model.ReasonNoPendingGrant,
			Err:    fmt.Errorf("flow is %s", state),
		}
	}

	verifier, err := f.validateCallback(callbackURI)
	if err != nil {
		defer f.mu.Unlock()
		return model.TokenPair{}, f.failLocked(model.StageCallback, model.ReasonInvalidCallback, err)
	}

	id := f.id
	requestToken := f.requestToken
	stepCtx, cancel := context.WithCancelCause(ctx)
	f.state = model.FlowExchangingToken
	f.authorizeURL = ""
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel(nil)

	access, err := f.provider.AccessToken(stepCtx, requestToken, verifier)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.id != id {
		return model.TokenPair{}, model.ErrFlowCanceled
	}
	f.cancel = nil

	if err != nil {
		if ctx.Err() != nil {
			f.resetLocked()
			metrics.AuthFlows.WithLabelValues("canceled").Inc()
			return model.TokenPair{}, ctx.Err()
		}
		return model.TokenPair{}, f.failLocked(model.StageAccessToken, model.ReasonTransport, err)
	}
	if access.IsZero() {
		return model.TokenPair{}, f.failLocked(model.StageAccessToken, model.ReasonProtocol, errors.New("provider returned an empty access token"))
	}

	f.state = model.FlowAuthorized
	f.requestToken = model.TokenPair{}
	metrics.AuthFlows.WithLabelValues("authorized").Inc()
	slog.Info("authorization granted", "flow_id", id)

	return access, nil
}

// Cancel aborts an in-progress flow and returns to Idle, discarding the
// request token. Cancelling an idle or finished flow does nothing.
func (f *AuthFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortLocked("canceled")
}

// abortLocked tears down an in-progress flow. f.mu must be held.
func (f *AuthFlow) abortLocked(why string) {
	if !f.state.InProgress() {
		return
	}
	if f.cancel != nil {
		f.cancel(model.ErrFlowCanceled)
	}
	slog.Info("authorization flow aborted", "flow_id", f.id, "state", f.state, "reason", why)
	metrics.AuthFlows.WithLabelValues("canceled").Inc()
	f.resetLocked()
}

func (f *AuthFlow) resetLocked() {
	f.state = model.FlowIdle
	f.id = ""
	f.requestToken = model.TokenPair{}
	f.authorizeURL = ""
	f.cancel = nil
}

func (f *AuthFlow) failLocked(stage model.AuthStage, reason model.AuthReason, err error) error {
	slog.Warn("authorization failed", "flow_id", f.id, "stage", stage, "reason", reason, "error", err)
	metrics.AuthFlows.WithLabelValues("failed").Inc()

	f.state = model.FlowFailed
	f.requestToken = model.TokenPair{}
	f.authorizeURL = ""
	f.cancel = nil
	return &model.AuthorizationError{Stage: stage, Reason: reason, Err: err}
}

// validateCallback checks the redirect against the configured scheme and host
// and returns the verifier. f.mu must be held.
func (f *AuthFlow) validateCallback(callbackURI string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(callbackURI))
	if err != nil {
		return "", fmt.Errorf("parse callback: %w", err)
	}
	if !strings.EqualFold(u.Scheme, f.cfg.CallbackScheme) {
		return "", fmt.Errorf("callback scheme %q does not match %q", u.Scheme, f.cfg.CallbackScheme)
	}
	if !strings.EqualFold(u.Host, f.cfg.CallbackHost) {
		return "", fmt.Errorf("callback host %q does not match %q", u.Host, f.cfg.CallbackHost)
	}

	query := u.Query()
	verifier := query.Get("oauth_verifier")
	if verifier == "" {
		return "", errors.New("callback carries no oauth_verifier")
	}
	if token := query.Get("oauth_token"); token != "" && token != f.requestToken.Token {
		return "", errors.New("callback oauth_token does not match the pending request token")
	}
	return verifier, nil
}
