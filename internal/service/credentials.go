package service

import (
	"context"

	"greendrop/internal/events"
	"greendrop/internal/logger"
)

// Unlinker is the slice of the link manager logout needs.
type Unlinker interface {
	Disconnect(ctx context.Context)
	ClearLive()
}

type CredentialService struct {
	tokens TokenStore
	link   Unlinker
	pub    Publisher
	log    *logger.Logger
}

func NewCredentialService(tokens TokenStore, link Unlinker, pub Publisher, log *logger.Logger) *CredentialService {
	if log == nil {
		log = logger.Nop()
	}
	return &CredentialService{tokens: tokens, link: link, pub: pub, log: log.Named("credentials")}
}

func (s *CredentialService) SetToken(token string) error {
	if err := s.tokens.Set(token); err != nil {
		return err
	}
	s.log.Infow("credential_cached")
	return nil
}

func (s *CredentialService) Authorized() bool {
	return s.tokens.Present()
}

// Logout drops the link while the credential can still close the backend
// session, then forgets the credential and the last readings.
func (s *CredentialService) Logout(ctx context.Context) {
	s.link.Disconnect(ctx)
	s.tokens.Clear()
	s.link.ClearLive()
	if s.pub != nil {
		s.pub.Publish(events.DeviceConnected, nil)
	}
	s.log.Infow("logged_out")
}
