package action

import (
	"sort"
	"sync"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
	"github.com/zoidberg-sync/zoidberg/pkg/metrics"
)

// Shipped action names.
const (
	NameSyncBranch         = "zoidberg.SyncBranch"
	NameSyncReviewCode     = "zoidberg.SyncReviewCode"
	NamePropagateComment   = "zoidberg.PropagateComment"
	NameMarkChangeAsMerged = "zoidberg.MarkChangeAsMerged"
)

// Action is one pluggable reaction to gerrit events. Implementations
// provide the variant-specific pieces; the universal parts of the
// contract (target validation, branch filter, target-liveness gate)
// live in Validate, Run and Startup below.
type Action interface {
	// ValidateConfig checks variant-specific binding settings. It runs
	// after the universal target checks have passed.
	ValidateConfig(cfg *config.Config, binding *config.Binding) error

	// DoRun reacts to one event. The target's client is known to be
	// active when this is called.
	DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error

	// DoStartup performs the idempotent catch-up work for one startup
	// binding. Variants with no startup behavior return nil.
	DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error
}

// Registry maps registered action names to implementations. It is
// populated at startup and during plugin load, and read-only while the
// processing loop runs.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// NewDefaultRegistry returns a registry holding the shipped actions.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameSyncBranch, &SyncBranch{})
	r.Register(NameSyncReviewCode, &SyncReviewCode{})
	r.Register(NamePropagateComment, &PropagateComment{})
	r.Register(NameMarkChangeAsMerged, &MarkChangeAsMerged{})
	return r
}

// Register adds an implementation under name, replacing any previous
// registration of the same name.
func (r *Registry) Register(name string, act Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = act
}

// Get returns the implementation registered under name, or nil.
func (r *Registry) Get(name string) Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[name]
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate applies the universal binding checks, then the variant's
// own. Every binding needs a target naming a configured gerrit.
func Validate(act Action, name string, cfg *config.Config, binding *config.Binding) error {
	if binding.Target == "" {
		return config.Validationf("no target found for %s action", name)
	}
	if _, ok := cfg.Gerrits[binding.Target]; !ok {
		return config.Validationf(
			"target %s does not reference a gerrit instance", binding.Target)
	}
	return act.ValidateConfig(cfg, binding)
}

// Run applies the per-event contract around act.DoRun: the branch
// filter first, then the target-liveness gate. An event whose target is
// down lands in the originating source's failed buffer and is retried
// on a later iteration; a DoRun error is logged and the event is not
// requeued.
func Run(act Action, name string, ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) {
	if binding.BranchRe != nil && !binding.BranchRe.MatchString(ev.Branch()) {
		return
	}

	target := cfg.Gerrits[binding.Target]
	if target == nil || target.Client == nil || !target.Client.IsActive() {
		source.Client.StoreFailedEvent(ev)
		return
	}

	timer := metrics.NewTimer()
	metrics.ActionsRunTotal.WithLabelValues(name).Inc()

	if err := act.DoRun(ev, cfg, binding, source); err != nil {
		logger := log.With("action", name)
		logger.Error().
			Err(err).
			Str("event_id", ev.ID).
			Str("gerrit", source.Name).
			Msg("Action failed")
	}
	timer.ObserveDurationVec(metrics.ActionDuration, name)
}

// Startup runs one startup binding if its target is up. It reports
// whether the task ran; a false return tells the engine to requeue.
func Startup(act Action, name string, cfg *config.Config, binding *config.Binding, source *config.Source) bool {
	target := cfg.Gerrits[binding.Target]
	if target == nil || target.Client == nil || !target.Client.IsActive() {
		return false
	}

	if err := act.DoStartup(cfg, binding, source, target); err != nil {
		logger := log.With("action", name)
		logger.Error().
			Err(err).
			Str("gerrit", source.Name).
			Msg("Startup task failed")
	}
	return true
}
