package application

import (
	"context"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// LoginService hands a completed authorization flow over to the session
// controller. It is the entry point used by the CLI and the HTTP API.
type LoginService struct {
	flow    *AuthFlow
	session *SessionController
}

// NewLoginService creates a LoginService.
func NewLoginService(flow *AuthFlow, session *SessionController) *LoginService {
	return &LoginService{flow: flow, session: session}
}

// Begin starts a new authorization flow and returns the URL to present to
// the user.
func (s *LoginService) Begin(ctx context.Context) (string, error) {
	return s.flow.Begin(ctx)
}

// Complete finishes the flow with the provider's redirect and provisions the
// session. Credentials are only written once the access token was obtained.
func (s *LoginService) Complete(ctx context.Context, callbackURI string) (model.Session, error) {
	pair, err := s.flow.Complete(ctx, callbackURI)
	if err != nil {
		return model.Session{}, err
	}
	return s.session.OnAuthorized(ctx, pair)
}

// Cancel aborts an in-progress flow.
func (s *LoginService) Cancel() {
	s.flow.Cancel()
}

// Status reports the state of the authorization flow.
func (s *LoginService) Status() FlowStatus {
	return s.flow.Status()
}
