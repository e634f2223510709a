package plugin

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/zoidberg-sync/zoidberg/pkg/action"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
)

// RegisterFunc is the symbol a plugin exposes to add its actions to the
// registry. Shared-object plugins export it as RegisterActions.
type RegisterFunc func(*action.Registry)

// RegisterSymbol is the name looked up in shared-object plugins.
const RegisterSymbol = "RegisterActions"

var (
	builtinMu sync.Mutex
	builtins  = make(map[string]RegisterFunc)
)

// RegisterBuiltin adds a compiled-in plugin bundle under name. Config
// files refer to it by that name. Typically called from an init
// function in the bundle's package, wired in by the importing binary.
func RegisterBuiltin(name string, fn RegisterFunc) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtins[name] = fn
}

func builtin(name string) RegisterFunc {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	return builtins[name]
}

// Load resolves each configured plugin name and lets it register its
// actions. A name resolves first against the compiled-in bundle table,
// then as a filesystem path to a Go shared object exporting
// RegisterActions. A name that resolves neither way fails the load; the
// engine treats that as fatal on first load and keeps the old config on
// reload.
func Load(names []string, reg *action.Registry) error {
	logger := log.For("plugin")

	for _, name := range names {
		if fn := builtin(name); fn != nil {
			fn(reg)
			logger.Debug().Str("plugin", name).Msg("Loaded builtin plugin")
			continue
		}

		p, err := plugin.Open(name)
		if err != nil {
			return fmt.Errorf("failed to load plugin %s: %w", name, err)
		}
		sym, err := p.Lookup(RegisterSymbol)
		if err != nil {
			return fmt.Errorf("plugin %s does not export %s: %w", name, RegisterSymbol, err)
		}
		fn, ok := sym.(func(*action.Registry))
		if !ok {
			return fmt.Errorf("plugin %s: %s has wrong type %T", name, RegisterSymbol, sym)
		}
		fn(reg)
		logger.Info().Str("plugin", name).Msg("Loaded shared-object plugin")
	}

	return nil
}
