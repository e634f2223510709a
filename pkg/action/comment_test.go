package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
)

func commentEvent(comment string) *event.Event {
	return &event.Event{
		Type:     event.TypeCommentAdded,
		Change:   &event.Change{Project: "nikki", Branch: "master"},
		PatchSet: &event.PatchSet{Revision: "abc"},
		Author:   &event.Account{Name: "Alice", Email: "a@x"},
		Comment:  comment,
	}
}

func TestPropagateCommentForwardPath(t *testing.T) {
	cfg, _, targetClient := testConfig(true, true)
	act := &PropagateComment{}
	binding := &config.Binding{Action: NamePropagateComment, Target: "thirdparty"}

	err := act.DoRun(commentEvent("LGTM"), cfg, binding, cfg.Gerrits["master"])
	require.NoError(t, err)

	require.Len(t, targetClient.commands, 1)
	assert.Equal(t,
		"review abc -m \"Alice (a@x) - (master gerrit)\n\n--------\n\nLGTM\"",
		targetClient.commands[0])
}

func TestPropagateCommentLoopPrevention(t *testing.T) {
	cfg, _, targetClient := testConfig(true, true)
	act := &PropagateComment{}
	binding := &config.Binding{Action: NamePropagateComment, Target: "thirdparty"}

	// A comment that already carries our propagation header must not be
	// reposted.
	ev := commentEvent("Alice (a@x) - (master gerrit)\n\n--------\n\nLGTM")

	err := act.DoRun(ev, cfg, binding, cfg.Gerrits["master"])
	require.NoError(t, err)
	assert.Empty(t, targetClient.commands)
}

func TestPropagateCommentDifferentAuthorStillForwards(t *testing.T) {
	cfg, _, targetClient := testConfig(true, true)
	act := &PropagateComment{}
	binding := &config.Binding{Action: NamePropagateComment, Target: "thirdparty"}

	// The header names Bob, the incoming author is Alice: not one of
	// ours, so it propagates.
	ev := commentEvent("Bob (b@x) - (master gerrit)\n\n--------\n\nlooks fine")

	err := act.DoRun(ev, cfg, binding, cfg.Gerrits["master"])
	require.NoError(t, err)
	assert.Len(t, targetClient.commands, 1)
}

func TestPropagateCommentMissingFields(t *testing.T) {
	cfg, _, targetClient := testConfig(true, true)
	act := &PropagateComment{}
	binding := &config.Binding{Action: NamePropagateComment, Target: "thirdparty"}

	err := act.DoRun(&event.Event{Type: event.TypeCommentAdded}, cfg, binding, cfg.Gerrits["master"])

	require.Error(t, err)
	assert.Empty(t, targetClient.commands)
}
