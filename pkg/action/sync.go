package action

import (
	"fmt"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/event"
)

// SyncBranch mirrors a branch from the originating gerrit to the target
// on every ref-updated event: clone the branch from the source, then
// force-push it to the same branch on the target.
//
// As a startup task it mirrors every (project, branch) pair named in
// the binding, catching up anything pushed while the daemon was down.
type SyncBranch struct {
	GitSSH
}

// ValidateConfig accepts any binding; the universal target checks are
// all a branch mirror needs.
func (a *SyncBranch) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return nil
}

func (a *SyncBranch) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	if ev.RefUpdate == nil {
		return fmt.Errorf("event %s has no ref update", ev.ID)
	}
	target := cfg.Gerrits[binding.Target]
	return a.mirror(source, target, ev.RefUpdate.Project, ev.RefUpdate.RefName)
}

func (a *SyncBranch) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	for _, project := range binding.Projects {
		for _, branch := range binding.Branches {
			if err := a.mirror(source, target, project, branch); err != nil {
				return err
			}
		}
	}
	return nil
}

// mirror clones the branch from the source gerrit and force-pushes it
// to the target. The clone always comes from the originating server so
// the push carries exactly what that server has.
func (a *SyncBranch) mirror(source, target *config.Source, project, branch string) error {
	workingDir := a.WorkingDir(source, project)

	if err := a.Git(GitRequest{
		Command: "clone",
		Gerrit:  source,
		Project: project,
		Branch:  branch,
	}); err != nil {
		return err
	}

	return a.Git(GitRequest{
		Command:    "push",
		Gerrit:     target,
		Project:    project,
		Args:       []string{fmt.Sprintf("%s:refs/heads/%s", branch, branch), "--force"},
		WorkingDir: workingDir,
		Cleanup:    true,
	})
}

// SyncReviewCode forwards a patch set to the target gerrit for review:
// clone the change's branch from the target, fetch the submitted ref
// from the source, and push FETCH_HEAD to the target's refs/for
// namespace under the change's topic.
type SyncReviewCode struct {
	GitSSH
}

// ValidateConfig accepts any binding.
func (a *SyncReviewCode) ValidateConfig(cfg *config.Config, binding *config.Binding) error {
	return nil
}

func (a *SyncReviewCode) DoRun(ev *event.Event, cfg *config.Config, binding *config.Binding, source *config.Source) error {
	if ev.Change == nil || ev.PatchSet == nil {
		return fmt.Errorf("event %s has no change or patch set", ev.ID)
	}

	target := cfg.Gerrits[binding.Target]
	branch := ev.Change.Branch
	project := ev.Change.Project
	ref := ev.PatchSet.Ref
	topic := ev.Change.Topic

	// The clone comes from the target so FETCH_HEAD lands on a tree the
	// target already knows; only the submitted ref is fetched from the
	// source.
	if err := a.Git(GitRequest{
		Command: "clone",
		Gerrit:  target,
		Project: project,
		Branch:  branch,
	}); err != nil {
		return err
	}

	workingDir := a.WorkingDir(target, project)

	if err := a.Git(GitRequest{
		Command:    "fetch",
		Gerrit:     source,
		Project:    project,
		Args:       []string{ref},
		WorkingDir: workingDir,
	}); err != nil {
		return err
	}

	return a.Git(GitRequest{
		Command:    "push",
		Gerrit:     target,
		Project:    project,
		Args:       []string{fmt.Sprintf("FETCH_HEAD:refs/for/%s/%s", branch, topic)},
		WorkingDir: workingDir,
		Cleanup:    true,
	})
}

// DoStartup is a no-op; review forwarding has no catch-up work.
func (a *SyncReviewCode) DoStartup(cfg *config.Config, binding *config.Binding, source, target *config.Source) error {
	return nil
}
