//go:build wireinject

package app

import (
	"okxagent/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(cfg *config.Config) (*App, func(), error) {
	panic(wire.Build(ProviderSet))
}
