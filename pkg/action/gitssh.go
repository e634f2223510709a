package action

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zoidberg-sync/zoidberg/pkg/config"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
)

// GitRequest describes one git invocation against a gerrit instance.
type GitRequest struct {
	// Command is the git subcommand: clone, fetch, push.
	Command string

	// Gerrit is the instance the remote URL points at.
	Gerrit *config.Source

	// Project is the repository path on the gerrit instance.
	Project string

	// Args are appended after the remote URL.
	Args []string

	// Branch, when set on a clone, is checked out (and pulled) after
	// the clone completes.
	Branch string

	// WorkingDir overrides the default <host>-<project>-tmp directory.
	WorkingDir string

	// Cleanup removes the working directory after the command.
	Cleanup bool
}

// GitSSH runs git against gerrit instances over SSH. Key selection
// works through a per-host one-shot wrapper script installed as
// GIT_SSH, so each instance's configured private key is used without
// touching the user's SSH config.
//
// Actions that shell out to git embed this. It is exported so plugin
// actions can reuse the same plumbing.
type GitSSH struct {
	// runner overrides command execution; tests inject it to capture
	// the exact git invocations. Nil means exec the real git binary.
	runner func(args []string, wrapper, dir string) error
}

// WorkingDir returns the per-host scratch clone directory for a
// project, relative to the process working directory.
func (GitSSH) WorkingDir(gerrit *config.Source, project string) string {
	return fmt.Sprintf("%s-%s-tmp", gerrit.Host, project)
}

// sshWrapper writes the executable GIT_SSH script for one host and
// returns its absolute path.
func (GitSSH) sshWrapper(gerrit *config.Source) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	filename := filepath.Join(cwd, ".tmp_ssh_"+gerrit.Host)
	script := fmt.Sprintf("#!/bin/bash\nssh -i %s \"$@\"\n", gerrit.KeyFilename)
	if err := os.WriteFile(filename, []byte(script), 0o755); err != nil {
		return "", err
	}
	return filename, nil
}

// Git runs one git command against the request's gerrit instance. A
// clone lands in the working directory and, when Branch is set, is
// followed by a checkout and pull of that branch. Cleanup removes the
// working directory afterwards.
func (g GitSSH) Git(req GitRequest) error {
	url := fmt.Sprintf("ssh://%s@%s:%d/%s",
		req.Gerrit.Username, req.Gerrit.Host, req.Gerrit.Port, req.Project)

	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = g.WorkingDir(req.Gerrit, req.Project)
	}

	wrapper, err := g.sshWrapper(req.Gerrit)
	if err != nil {
		return fmt.Errorf("failed to write ssh wrapper for %s: %w", req.Gerrit.Host, err)
	}

	args := []string{req.Command, url}
	dir := workingDir
	if req.Command == "clone" {
		args = append(args, workingDir)
		dir = ""
	}
	args = append(args, req.Args...)

	if err := g.runGit(args, wrapper, dir); err != nil {
		return err
	}

	if req.Command == "clone" && req.Branch != "" {
		if err := g.runGit([]string{"checkout", req.Branch}, wrapper, workingDir); err != nil {
			return err
		}
		if err := g.runGit([]string{"pull"}, wrapper, workingDir); err != nil {
			return err
		}
	}

	if req.Cleanup {
		if err := os.RemoveAll(workingDir); err != nil {
			return fmt.Errorf("failed to clean up %s: %w", workingDir, err)
		}
	}

	return nil
}

func (g GitSSH) runGit(args []string, wrapper, dir string) error {
	if g.runner != nil {
		return g.runner(args, wrapper, dir)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_SSH="+wrapper)

	out, err := cmd.CombinedOutput()
	logger := log.For("gitssh")
	logger.Debug().
		Strs("args", args).
		Str("dir", dir).
		Bytes("output", out).
		Msg("Ran git")

	if err != nil {
		return fmt.Errorf("git %s failed: %w: %s", args[0], err, out)
	}
	return nil
}
