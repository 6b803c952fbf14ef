//go:build wireinject
// +build wireinject

package main

import "github.com/google/wire"

// InitializeApp wires the example service from its configuration.
func InitializeApp(cfg *Config) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
