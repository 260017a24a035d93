//go:build wireinject
// +build wireinject

package di

import (
	"FolioPulse/internal/usecase"
	"FolioPulse/pkg/config"
	"FolioPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up the daemon: storage, provider, tracker, scheduler and HTTP surface.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}

// InitializeTracker wires only the tracker, for one-shot CLI commands.
func InitializeTracker(cfg *config.Config) (*usecase.Tracker, func(), error) {
	wire.Build(CoreSet)
	return nil, nil, nil
}
