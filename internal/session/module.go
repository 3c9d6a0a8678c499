package session

import (
	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/kvstore"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the session Store and binds it as the credential source
// and the tutor state.
func Module() fx.Option {
	return fx.Provide(
		func(kv kvstore.Store, cfg config.Config, logger *zap.Logger) *Store {
			return New(kv, cfg.OpenAI.APIKey, logger.Named("session"))
		},
		func(s *Store) generation.CredentialSource { return s },
		func(s *Store) tutor.State { return s },
	)
}
