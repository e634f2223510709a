/*
Package action defines the pluggable reactions to gerrit events and the
registry that names them.

An Action implements the variant-specific pieces (ValidateConfig, DoRun,
DoStartup); the universal contract wraps them:

  - Validate checks that the binding names a target and that the target
    is a configured gerrit, then defers to the variant.
  - Run applies the optional branch filter, then the target-liveness
    gate: when the target's client is down the event goes into the
    originating source's failed buffer for a later retry. Only then does
    the variant run. A variant error is logged and the event is not
    requeued.
  - Startup runs catch-up work once per source (re)connection, but only
    when the target is up; otherwise it reports false and the engine
    keeps the task queued.

Shipped actions:

  - zoidberg.SyncBranch mirrors updated branches to the target and, as a
    startup task, mirrors configured (project, branch) pairs.
  - zoidberg.SyncReviewCode forwards uploaded patch sets to the target's
    refs/for namespace for review.
  - zoidberg.PropagateComment reposts review comments with an
    attribution header, refusing to repost a comment whose first line is
    already a header for the same author (the loop-prevention rule).
  - zoidberg.MarkChangeAsMerged is declared but not implemented; binding
    it fails validation.

Actions that shell out embed GitSSH, which writes a per-host GIT_SSH
wrapper script so each instance's configured private key is used.

Plugins register additional actions on the Registry the engine was
constructed with; see the plugin package.
*/
package action
