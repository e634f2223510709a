package engine

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zoidberg-sync/zoidberg/pkg/action"
	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
	"github.com/zoidberg-sync/zoidberg/pkg/gerrit"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
	"github.com/zoidberg-sync/zoidberg/pkg/metrics"
	"github.com/zoidberg-sync/zoidberg/pkg/plugin"
)

// pollTimeout bounds how long one source's queue is polled for a single
// event. Small enough that reload and shutdown latency stay bounded.
const pollTimeout = 500 * time.Millisecond

// reconnectDelay is slept before re-activating a dead client, so a
// downed server does not turn the loop into a hot spin.
const reconnectDelay = time.Second

// startupTask is one queued startup binding, remembered together with
// the source whose activation enqueued it.
type startupTask struct {
	binding *config.Binding
	source  *config.Source
}

// Engine owns the processing loop: fair round-robin polling of all
// sources, startup-task dispatch, failed-event requeueing and config
// hot-reload.
type Engine struct {
	registry *action.Registry
	logger   zerolog.Logger

	cfg          *config.Config
	startupTasks []startupTask

	running atomic.Bool

	// stat and sleep are injection points for tests.
	stat  func(string) (os.FileInfo, error)
	sleep func(time.Duration)
}

// New builds an engine from the config file at path. The first load is
// strict: any parse, plugin or validation error is returned and the
// daemon should exit non-zero.
func New(path string, registry *action.Registry) (*Engine, error) {
	e := &Engine{
		registry: registry,
		logger:   log.For("engine"),
		stat:     os.Stat,
		sleep:    time.Sleep,
	}
	if err := e.loadConfig(path); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the currently live configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// loadConfig parses, validates and swaps in the config at path. When a
// previous config exists, clients whose connection tuple is unchanged
// are moved over so their connections and queues survive the reload.
func (e *Engine) loadConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := plugin.Load(cfg.Plugins, e.registry); err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := e.validateActions(cfg); err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	if e.cfg != nil {
		e.handOverClients(e.cfg, cfg)
		e.cfg.CloseClients()
		for name := range e.cfg.Gerrits {
			if _, ok := cfg.Gerrits[name]; !ok {
				metrics.RemoveGerrit(name)
			}
		}
	}

	e.cfg = cfg
	metrics.ConfigReloadsTotal.WithLabelValues("ok").Inc()
	e.logger.Info().Str("path", path).Int("gerrits", len(cfg.Gerrits)).Msg("Configuration loaded")
	return nil
}

// validateActions checks every binding against the registry and the
// action contract.
func (e *Engine) validateActions(cfg *config.Config) error {
	for _, name := range cfg.SourceNames() {
		source := cfg.Gerrits[name]
		for _, bindings := range source.Events {
			for _, binding := range bindings {
				if err := e.validateBinding(cfg, binding); err != nil {
					return err
				}
			}
		}
		for _, binding := range source.Startup {
			if err := e.validateBinding(cfg, binding); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) validateBinding(cfg *config.Config, binding *config.Binding) error {
	act := e.registry.Get(binding.Action)
	if act == nil {
		return config.Validationf("action %s is not registered", binding.Action)
	}
	return action.Validate(act, binding.Action, cfg, binding)
}

// handOverClients moves clients whose connection tuple is unchanged
// from the old config into the new one. The moved-from slot is nilled
// so CloseClients skips it; the new config's never-activated client is
// simply discarded.
func (e *Engine) handOverClients(oldCfg, newCfg *config.Config) {
	for name, newSource := range newCfg.Gerrits {
		oldSource, ok := oldCfg.Gerrits[name]
		if !ok || oldSource.Client == nil {
			continue
		}
		if oldSource.Client.ConnInfo() == newSource.ConnInfo() {
			e.logger.Debug().Str("gerrit", name).Msg("Connection unchanged, keeping client")
			newSource.Client = oldSource.Client
			oldSource.Client = nil
		}
	}
}

// Run executes the processing loop until Stop is called, then shuts
// down every client.
func (e *Engine) Run() {
	e.running.Store(true)
	e.logger.Info().Msg("Process loop started")

	for e.running.Load() {
		e.RunOnce()
	}

	e.logger.Info().Msg("Process loop stopped, shutting down clients")
	e.cfg.CloseClients()
}

// Stop makes the loop exit after the current iteration completes. Safe
// to call from a signal handler goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// RunOnce performs one outer iteration of the processing loop: startup
// tasks first, then one fair pass over all sources in deterministic
// order, then the config-file change check.
func (e *Engine) RunOnce() {
	e.processStartupTasks()

	for _, name := range e.cfg.SourceNames() {
		source := e.cfg.Gerrits[name]
		e.logger.Debug().Str("gerrit", name).Msg("Polling for events")

		client := e.getClient(source)
		metrics.SetGerritStatus(name, client.IsActive())

		// Previously failed events re-enter the main queue before new
		// ones are drained.
		client.EnqueueFailedEvents()

		for ev := client.GetEvent(pollTimeout); ev != nil; ev = client.GetEvent(pollTimeout) {
			e.processEvent(ev, source)
		}
	}

	if e.configFileHasChanged() {
		if err := e.loadConfig(e.cfg.Path); err != nil {
			e.logger.Error().Err(err).Msg("Config reload failed, keeping previous configuration")
		}
	}
}

// getClient returns the source's client, activating it first when it is
// not active. Activation failure is logged; the next iteration retries.
func (e *Engine) getClient(source *config.Source) gerrit.Client {
	client := source.Client
	if client.IsActive() {
		return client
	}

	e.logger.Info().Str("gerrit", source.Name).Msg("Client not active, trying to connect")
	e.sleep(reconnectDelay)

	if err := client.Activate(); err != nil {
		e.logger.Error().Err(err).Str("gerrit", source.Name).Msg("Could not connect")
		return client
	}

	e.queueStartupTasks(source)
	return client
}

// processEvent filters one event by project and kind, then invokes
// every bound action in order.
func (e *Engine) processEvent(ev *event.Event, source *config.Source) {
	project := ev.Project()
	if project == "" {
		// no project? not much we can do!
		return
	}

	if !source.ProjectRe.MatchString(project) {
		return
	}

	bindings, ok := source.Events[ev.Type]
	if !ok {
		return
	}

	metrics.EventsProcessedTotal.WithLabelValues(source.Name).Inc()

	for _, binding := range bindings {
		act := e.registry.Get(binding.Action)
		if act == nil {
			e.logger.Error().
				Str("action", binding.Action).
				Str("gerrit", source.Name).
				Msg("Bound action is not registered, skipping")
			continue
		}
		e.logger.Info().
			Str("action", binding.Action).
			Str("gerrit", source.Name).
			Str("event_id", ev.ID).
			Str("type", ev.Type).
			Msg("Running action")
		action.Run(act, binding.Action, ev, e.cfg, binding, source)
	}
}

// queueStartupTasks enqueues the source's startup bindings. Called only
// on an inactive-to-active client transition.
func (e *Engine) queueStartupTasks(source *config.Source) {
	for _, binding := range source.Startup {
		e.startupTasks = append(e.startupTasks, startupTask{binding: binding, source: source})
	}
	metrics.StartupTasksPendingTotal.Set(float64(len(e.startupTasks)))
}

// processStartupTasks drains the startup queue once. Tasks whose target
// is still down are re-appended, so each waiting task is attempted once
// per outer iteration and none is ever dropped.
func (e *Engine) processStartupTasks() {
	tasks := e.startupTasks
	e.startupTasks = nil

	var remaining []startupTask
	for _, task := range tasks {
		act := e.registry.Get(task.binding.Action)
		if act == nil {
			e.logger.Error().
				Str("action", task.binding.Action).
				Msg("Startup task names unregistered action, dropping")
			continue
		}
		if !action.Startup(act, task.binding.Action, e.cfg, task.binding, task.source) {
			remaining = append(remaining, task)
		} else {
			e.logger.Info().
				Str("action", task.binding.Action).
				Str("gerrit", task.source.Name).
				Msg("Startup task completed")
		}
	}

	e.startupTasks = append(e.startupTasks, remaining...)
	metrics.StartupTasksPendingTotal.Set(float64(len(e.startupTasks)))
}

// configFileHasChanged reports whether the config file's mtime is
// strictly newer than the one remembered at load time.
func (e *Engine) configFileHasChanged() bool {
	st, err := e.stat(e.cfg.Path)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Could not stat config file")
		return false
	}
	return st.ModTime().After(e.cfg.MTime)
}
