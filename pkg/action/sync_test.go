package action

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
)

// gitCall is one recorded git invocation.
type gitCall struct {
	args []string
	dir  string
}

// gitRecorder captures every git invocation instead of executing it.
type gitRecorder struct {
	calls []gitCall
}

func (r *gitRecorder) run(args []string, wrapper, dir string) error {
	r.calls = append(r.calls, gitCall{args: args, dir: dir})
	return nil
}

// gitConfig builds a two-source config with real connection details so
// the generated URLs and working directories are observable.
func gitConfig() *config.Config {
	return &config.Config{Gerrits: map[string]*config.Source{
		"master": {
			Name:        "master",
			Host:        "master.example.com",
			Port:        29418,
			Username:    "zoidberg",
			KeyFilename: "/etc/zoidberg/master_rsa",
			ProjectRe:   regexp.MustCompile(".*"),
			Client:      &fakeClient{active: true},
		},
		"thirdparty": {
			Name:        "thirdparty",
			Host:        "thirdparty.example.com",
			Port:        29418,
			Username:    "zoidberg",
			KeyFilename: "/etc/zoidberg/thirdparty_rsa",
			ProjectRe:   regexp.MustCompile(".*"),
			Client:      &fakeClient{active: true},
		},
	}}
}

// Scenario: a ref-updated event on master mirrors the branch to
// thirdparty. One clone from the source, a checkout and pull of the
// updated branch, one force-push to the target, then cleanup of the
// working directory.
func TestSyncBranchMirrorsRefUpdate(t *testing.T) {
	t.Chdir(t.TempDir())

	ev, err := event.Parse(`{"type":"ref-updated","refUpdate":{"project":"nikki","refName":"topic","oldRev":"aaa","newRev":"bbb"}}`)
	require.NoError(t, err)

	cfg := gitConfig()
	recorder := &gitRecorder{}
	act := &SyncBranch{GitSSH{runner: recorder.run}}
	binding := &config.Binding{Action: NameSyncBranch, Target: "thirdparty"}

	workingDir := "master.example.com-nikki-tmp"
	require.NoError(t, os.Mkdir(workingDir, 0o755))

	require.NoError(t, act.DoRun(ev, cfg, binding, cfg.Gerrits["master"]))

	assert.Equal(t, []gitCall{
		{args: []string{"clone", "ssh://zoidberg@master.example.com:29418/nikki", workingDir}, dir: ""},
		{args: []string{"checkout", "topic"}, dir: workingDir},
		{args: []string{"pull"}, dir: workingDir},
		{args: []string{"push", "ssh://zoidberg@thirdparty.example.com:29418/nikki", "topic:refs/heads/topic", "--force"}, dir: workingDir},
	}, recorder.calls)

	_, err = os.Stat(workingDir)
	assert.True(t, os.IsNotExist(err), "working directory must be cleaned up")
}

func TestSyncBranchRequiresRefUpdate(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := gitConfig()
	recorder := &gitRecorder{}
	act := &SyncBranch{GitSSH{runner: recorder.run}}
	binding := &config.Binding{Action: NameSyncBranch, Target: "thirdparty"}

	err := act.DoRun(&event.Event{Type: event.TypeRefUpdated}, cfg, binding, cfg.Gerrits["master"])

	require.Error(t, err)
	assert.Empty(t, recorder.calls)
}

// A startup binding mirrors every configured (project, branch) pair.
func TestSyncBranchStartupMirrorsAllPairs(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := gitConfig()
	recorder := &gitRecorder{}
	act := &SyncBranch{GitSSH{runner: recorder.run}}
	binding := &config.Binding{
		Action:   NameSyncBranch,
		Target:   "thirdparty",
		Projects: []string{"nikki"},
		Branches: []string{"master", "stable"},
	}

	require.NoError(t, act.DoStartup(cfg, binding, cfg.Gerrits["master"], cfg.Gerrits["thirdparty"]))

	// two mirrors of four git commands each, in branch order
	require.Len(t, recorder.calls, 8)
	assert.Equal(t, []string{"checkout", "master"}, recorder.calls[1].args)
	assert.Equal(t,
		[]string{"push", "ssh://zoidberg@thirdparty.example.com:29418/nikki", "master:refs/heads/master", "--force"},
		recorder.calls[3].args)
	assert.Equal(t, []string{"checkout", "stable"}, recorder.calls[5].args)
	assert.Equal(t,
		[]string{"push", "ssh://zoidberg@thirdparty.example.com:29418/nikki", "stable:refs/heads/stable", "--force"},
		recorder.calls[7].args)
}

// A patch set uploaded on master is forwarded to thirdparty for review:
// clone the change's branch from the target, fetch the submitted ref
// from the source, push FETCH_HEAD into the target's refs/for namespace.
func TestSyncReviewCodeForwardsPatchSet(t *testing.T) {
	t.Chdir(t.TempDir())

	ev, err := event.Parse(`{"type":"patchset-created",` +
		`"change":{"project":"nikki","branch":"master","topic":"feature"},` +
		`"patchSet":{"revision":"abc","ref":"refs/changes/01/1/1"}}`)
	require.NoError(t, err)

	cfg := gitConfig()
	recorder := &gitRecorder{}
	act := &SyncReviewCode{GitSSH{runner: recorder.run}}
	binding := &config.Binding{Action: NameSyncReviewCode, Target: "thirdparty"}

	workingDir := "thirdparty.example.com-nikki-tmp"
	require.NoError(t, os.Mkdir(workingDir, 0o755))

	require.NoError(t, act.DoRun(ev, cfg, binding, cfg.Gerrits["master"]))

	assert.Equal(t, []gitCall{
		{args: []string{"clone", "ssh://zoidberg@thirdparty.example.com:29418/nikki", workingDir}, dir: ""},
		{args: []string{"checkout", "master"}, dir: workingDir},
		{args: []string{"pull"}, dir: workingDir},
		{args: []string{"fetch", "ssh://zoidberg@master.example.com:29418/nikki", "refs/changes/01/1/1"}, dir: workingDir},
		{args: []string{"push", "ssh://zoidberg@thirdparty.example.com:29418/nikki", "FETCH_HEAD:refs/for/master/feature"}, dir: workingDir},
	}, recorder.calls)

	_, err = os.Stat(workingDir)
	assert.True(t, os.IsNotExist(err), "working directory must be cleaned up")
}

func TestSyncReviewCodeRequiresChangeAndPatchSet(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := gitConfig()
	recorder := &gitRecorder{}
	act := &SyncReviewCode{GitSSH{runner: recorder.run}}
	binding := &config.Binding{Action: NameSyncReviewCode, Target: "thirdparty"}

	err := act.DoRun(&event.Event{Type: event.TypePatchSetCreated}, cfg, binding, cfg.Gerrits["master"])

	require.Error(t, err)
	assert.Empty(t, recorder.calls)
}
