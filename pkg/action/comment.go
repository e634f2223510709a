package action

import (
	"fmt"
	"strings"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
)

// PropagateComment reposts review comments onto the matching change on
// the target gerrit, prefixed with a header naming the original author
// and the source instance.
type PropagateComment struct{}

// ValidateConfig accepts any binding.
func (a *PropagateComment) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return nil
}

func (a *PropagateComment) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	if ev.PatchSet == nil || ev.Author == nil {
		return fmt.Errorf("event %s has no patch set or author", ev.ID)
	}

	target := cfg.Gerrits[binding.Target]
	commit := ev.PatchSet.Revision

	// A comment we propagated earlier arrives back with our own header
	// as its first line; reposting it would bounce between instances
	// forever.
	incomingHeader, _, _ := strings.Cut(ev.Comment, "\n")
	userHeader := fmt.Sprintf("%s (%s)", ev.Author.Name, ev.Author.Email)
	if strings.HasPrefix(incomingHeader, userHeader) && strings.HasSuffix(incomingHeader, "gerrit)") {
		return nil
	}

	messageHeader := fmt.Sprintf("%s - (%s gerrit)", userHeader, source.Name)
	message := fmt.Sprintf("%s\n\n--------\n\n%s", messageHeader, ev.Comment)
	target.Client.RunCommand(fmt.Sprintf("review %s -m \"%s\"", commit, message))
	return nil
}

// DoStartup is a no-op; comments are only propagated live.
func (a *PropagateComment) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	return nil
}

// MarkChangeAsMerged is declared for config compatibility but has no
// implementation yet. Binding it fails validation so a config naming it
// is rejected instead of silently doing nothing.
type MarkChangeAsMerged struct{}

func (a *MarkChangeAsMerged) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return config.Validationf("%s is not implemented", NameMarkChangeAsMerged)
}

func (a *MarkChangeAsMerged) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	return fmt.Errorf("%s is not implemented", NameMarkChangeAsMerged)
}

func (a *MarkChangeAsMerged) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	return nil
}
