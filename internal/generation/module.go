package generation

import (
	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the model API client. A CredentialSource must be
// provided elsewhere in the graph.
func Module() fx.Option {
	return fx.Provide(newClient)
}

func newClient(cfg config.Config, creds CredentialSource, m *metrics.Metrics, logger *zap.Logger) *Client {
	return NewClient(OptionsFromConfig(cfg.OpenAI), creds, m, logger.Named("generation"))
}
