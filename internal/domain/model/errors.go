package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation needs stored
	// credentials and none exist. Callers route the user to login.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrProfileUnavailable marks a failed authenticated self-lookup.
	ErrProfileUnavailable = errors.New("user profile unavailable")

	// ErrStatisticsUnavailable marks a failed statistics backend fetch.
	ErrStatisticsUnavailable = errors.New("statistics unavailable")

	// ErrFlowCanceled is returned to a pending handshake step that was
	// aborted by Cancel or by a newer flow. It is not an authorization failure.
	ErrFlowCanceled = errors.New("authorization flow canceled")
)

// AuthStage names the handshake step an AuthorizationError came from.
type AuthStage string

const (
	StageRequestToken AuthStage = "request_token"
	StageCallback     AuthStage = "callback"
	StageAccessToken  AuthStage = "access_token"
	StagePersist      AuthStage = "persist"
)

// AuthReason classifies an AuthorizationError.
type AuthReason string

const (
	ReasonTransport       AuthReason = "transport"
	ReasonProtocol        AuthReason = "protocol"
	ReasonInvalidCallback AuthReason = "invalid_callback"
	ReasonNoPendingGrant  AuthReason = "no_pending_grant"
	ReasonStorage         AuthReason = "storage"
)

// AuthorizationError is a handshake failure. It is never retried
// automatically; the user has to restart the login.
type AuthorizationError struct {
	Stage  AuthStage
	Reason AuthReason
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authorization failed at %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("authorization failed at %s (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// IsInvalidCallback reports whether err is an AuthorizationError rejecting
// the redirect back from the provider.
func IsInvalidCallback(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr) && authErr.Reason == ReasonInvalidCallback
}
