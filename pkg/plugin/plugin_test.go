package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoidberg-sync/zoidberg/pkg/action"
	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
)

type noopAction struct{}

func (noopAction) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return nil
}

func (noopAction) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	return nil
}

func (noopAction) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	return nil
}

func TestLoadBuiltinBundle(t *testing.T) {
	RegisterBuiltin("testbundle", func(r *action.Registry) {
		r.Register("testbundle.Noop", noopAction{})
	})

	reg := action.NewRegistry()
	require.NoError(t, Load([]string{"testbundle"}, reg))

	assert.NotNil(t, reg.Get("testbundle.Noop"))
}

func TestLoadUnknownPluginFails(t *testing.T) {
	reg := action.NewRegistry()

	err := Load([]string{"no-such-bundle"}, reg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-bundle")
	assert.Empty(t, reg.Names())
}

func TestLoadEmptyList(t *testing.T) {
	assert.NoError(t, Load(nil, action.NewRegistry()))
}
