// Package builtin wires every built-in storefront adapter into a registry.
package builtin

import (
	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/adapters/nintendo"
	"github.com/gamedex/catalog/internal/adapters/psn"
	"github.com/gamedex/catalog/internal/adapters/steam"
	"github.com/gamedex/catalog/internal/adapters/xbox"
)

// Registry returns a registry with every built-in adapter installed.
func Registry() *adapters.Registry {
	reg := adapters.NewRegistry()
	steam.Register(reg)
	psn.Register(reg)
	xbox.Register(reg)
	nintendo.Register(reg)
	return reg
}
