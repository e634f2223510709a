package action

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
	"github.com/zoidberg-sync/zoidberg/pkg/gerrit"
)

// fakeClient is an in-memory gerrit.Client for contract tests.
type fakeClient struct {
	info     gerrit.ConnInfo
	active   bool
	failed   []*event.Event
	commands []string
}

func (f *fakeClient) Activate() error        { f.active = true; return nil }
func (f *fakeClient) IsActive() bool         { return f.active }
func (f *fakeClient) QueueEvent(line string) {}

func (f *fakeClient) GetEvent(timeout time.Duration) *event.Event { return nil }

func (f *fakeClient) StoreFailedEvent(ev *event.Event) { f.failed = append(f.failed, ev) }
func (f *fakeClient) EnqueueFailedEvents()             {}

func (f *fakeClient) RunCommand(cmd string) []string {
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeClient) Shutdown()                 { f.active = false }
func (f *fakeClient) ConnInfo() gerrit.ConnInfo { return f.info }

// recordingAction captures contract callbacks.
type recordingAction struct {
	validateErr error
	runErr      error
	runs        []*event.Event
	startups    []*config.Source
}

func (a *recordingAction) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return a.validateErr
}

func (a *recordingAction) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	a.runs = append(a.runs, ev)
	return a.runErr
}

func (a *recordingAction) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	a.startups = append(a.startups, target)
	return nil
}

// testConfig builds a two-source config with fake clients.
func testConfig(sourceActive, targetActive bool) (*config.Config, *fakeClient, *fakeClient) {
	sourceClient := &fakeClient{active: sourceActive}
	targetClient := &fakeClient{active: targetActive}

	cfg := &config.Config{Gerrits: map[string]*config.Source{
		"master": {
			Name:      "master",
			Host:      "master.example.com",
			Port:      29418,
			Username:  "zoidberg",
			ProjectRe: regexp.MustCompile(".*"),
			Client:    sourceClient,
		},
		"thirdparty": {
			Name:      "thirdparty",
			Host:      "thirdparty.example.com",
			Port:      29418,
			Username:  "zoidberg",
			ProjectRe: regexp.MustCompile(".*"),
			Client:    targetClient,
		},
	}}
	return cfg, sourceClient, targetClient
}

func TestValidate(t *testing.T) {
	cfg, _, _ := testConfig(true, true)

	tests := []struct {
		name    string
		binding *config.Binding
		act     *recordingAction
		wantErr string
	}{
		{
			name:    "missing target",
			binding: &config.Binding{Action: "x"},
			act:     &recordingAction{},
			wantErr: "no target found",
		},
		{
			name:    "unknown target",
			binding: &config.Binding{Action: "x", Target: "nowhere"},
			act:     &recordingAction{},
			wantErr: "does not reference a gerrit instance",
		},
		{
			name:    "variant rejection",
			binding: &config.Binding{Action: "x", Target: "thirdparty"},
			act:     &recordingAction{validateErr: errors.New("variant says no")},
			wantErr: "variant says no",
		},
		{
			name:    "valid",
			binding: &config.Binding{Action: "x", Target: "thirdparty"},
			act:     &recordingAction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.act, "x", cfg, tt.binding)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRunBranchFilter(t *testing.T) {
	cfg, _, _ := testConfig(true, true)
	source := cfg.Gerrits["master"]

	tests := []struct {
		name     string
		branchRe string
		ev       *event.Event
		wantRun  bool
	}{
		{
			name:     "change branch matches",
			branchRe: "^master$",
			ev:       &event.Event{Change: &event.Change{Branch: "master"}},
			wantRun:  true,
		},
		{
			name:     "change branch filtered out",
			branchRe: "^master$",
			ev:       &event.Event{Change: &event.Change{Branch: "feature"}},
			wantRun:  false,
		},
		{
			name:     "refname matches",
			branchRe: "^topic$",
			ev:       &event.Event{RefUpdate: &event.RefUpdate{RefName: "topic"}},
			wantRun:  true,
		},
		{
			name:     "no filter always runs",
			branchRe: "",
			ev:       &event.Event{Change: &event.Change{Branch: "anything"}},
			wantRun:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := &recordingAction{}
			binding := &config.Binding{Action: "x", Target: "thirdparty"}
			if tt.branchRe != "" {
				binding.BranchRe = regexp.MustCompile(tt.branchRe)
			}

			Run(act, "x", tt.ev, cfg, binding, source)

			if tt.wantRun {
				assert.Len(t, act.runs, 1)
			} else {
				assert.Empty(t, act.runs)
			}
		})
	}
}

func TestRunStoresFailedEventWhenTargetDown(t *testing.T) {
	cfg, sourceClient, _ := testConfig(true, false)
	source := cfg.Gerrits["master"]
	act := &recordingAction{}
	binding := &config.Binding{Action: "x", Target: "thirdparty"}
	ev := &event.Event{ID: "ev-1", Change: &event.Change{Branch: "master"}}

	Run(act, "x", ev, cfg, binding, source)

	assert.Empty(t, act.runs)
	require.Len(t, sourceClient.failed, 1)
	assert.Equal(t, "ev-1", sourceClient.failed[0].ID)
}

func TestRunInvokesVariantWhenTargetUp(t *testing.T) {
	cfg, sourceClient, _ := testConfig(true, true)
	source := cfg.Gerrits["master"]
	act := &recordingAction{}
	binding := &config.Binding{Action: "x", Target: "thirdparty"}

	Run(act, "x", &event.Event{}, cfg, binding, source)

	assert.Len(t, act.runs, 1)
	assert.Empty(t, sourceClient.failed)
}

func TestStartup(t *testing.T) {
	t.Run("target down reports false", func(t *testing.T) {
		cfg, _, _ := testConfig(true, false)
		act := &recordingAction{}
		binding := &config.Binding{Action: "x", Target: "thirdparty"}

		ran := Startup(act, "x", cfg, binding, cfg.Gerrits["master"])

		assert.False(t, ran)
		assert.Empty(t, act.startups)
	})

	t.Run("target up runs variant", func(t *testing.T) {
		cfg, _, _ := testConfig(true, true)
		act := &recordingAction{}
		binding := &config.Binding{Action: "x", Target: "thirdparty"}

		ran := Startup(act, "x", cfg, binding, cfg.Gerrits["master"])

		assert.True(t, ran)
		require.Len(t, act.startups, 1)
		assert.Equal(t, "thirdparty", act.startups[0].Name)
	})
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	assert.NotNil(t, r.Get(NameSyncBranch))
	assert.NotNil(t, r.Get(NameSyncReviewCode))
	assert.NotNil(t, r.Get(NamePropagateComment))
	assert.NotNil(t, r.Get(NameMarkChangeAsMerged))
	assert.Nil(t, r.Get("zoidberg.NoSuchAction"))

	assert.Equal(t, []string{
		NameMarkChangeAsMerged,
		NamePropagateComment,
		NameSyncBranch,
		NameSyncReviewCode,
	}, r.Names())
}

func TestRegistryReplacesOnReRegister(t *testing.T) {
	r := NewRegistry()
	first := &recordingAction{}
	second := &recordingAction{}

	r.Register("x", first)
	r.Register("x", second)

	assert.Same(t, Action(second), r.Get("x"))
}

func TestMarkChangeAsMergedRejectsBinding(t *testing.T) {
	cfg, _, _ := testConfig(true, true)
	act := &MarkChangeAsMerged{}
	binding := &config.Binding{Action: NameMarkChangeAsMerged, Target: "thirdparty"}

	err := Validate(act, NameMarkChangeAsMerged, cfg, binding)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}
