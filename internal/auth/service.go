package auth

import (
	"context"
)

// Service ties the pending-state lifecycle to the token exchange for the
// browser login flow.
type Service struct {
	states    *StateManager
	exchanger *Exchanger
}

func NewService(states *StateManager, exchanger *Exchanger) *Service {
	return &Service{
		states:    states,
		exchanger: exchanger,
	}
}

// BeginLogin mints a state token and returns the consent URL to redirect to
func (s *Service) BeginLogin(ctx context.Context) (string, error) {
	state, err := s.states.Mint(ctx)
	if err != nil {
		return "", err
	}
	return s.exchanger.AuthorizeURL(state), nil
}

// CompleteLogin verifies the callback state, then exchanges and stores the
// code. State verification happens before any upstream traffic, so a forged
// or replayed callback never reaches the token endpoint.
func (s *Service) CompleteLogin(ctx context.Context, code, state string) (*Credential, error) {
	if err := s.states.Consume(ctx, state); err != nil {
		return nil, err
	}
	return s.exchanger.ExchangeAuthorizationCode(ctx, code)
}
