/*
Package engine implements the Zoidberg processing loop.

The engine multiplexes events from every configured gerrit instance,
filters them, and dispatches the bound actions. One goroutine runs the
loop; one stream-reader goroutine per source feeds the per-source
queues.

# Architecture

	┌──────────────────── PROCESSING LOOP ─────────────────────┐
	│                                                           │
	│  per outer iteration:                                     │
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │ 1. Startup tasks                           │           │
	│  │    - one attempt per queued task           │           │
	│  │    - target down -> task re-queued         │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │ 2. Sources, in sorted name order           │           │
	│  │    - (re)activate client if needed         │           │
	│  │    - requeue failed events                 │           │
	│  │    - drain queue: filter -> actions        │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │ 3. Config hot-reload                       │           │
	│  │    - mtime strictly newer -> reload        │           │
	│  │    - unchanged connections keep clients    │           │
	│  │    - reload errors keep old config         │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Ordering guarantees

Per source, events reach the actions in the order the server emitted
them; the per-source FIFO queue is the only path. Failed events are
requeued before new events are drained in the same iteration, so they
can run ahead of the next batch. No ordering is promised across
sources. Startup tasks always run at the head of an iteration.

# Liveness and retry

A client found inactive (never connected, keepalive lost the transport,
or the stream stopped on a remote error) is re-activated in place, after
a short delay so a downed server does not spin the loop. Activation
failures are logged and retried next iteration. Each successful
inactive-to-active transition enqueues the source's startup tasks.

# Reload semantics

A reload parses and fully validates the new config before anything is
swapped. Sources present on both sides with an unchanged connection
tuple keep their live client (and its queued events); everything else is
shut down. Any reload error leaves the previous configuration running.

# Shutdown

Stop flips the running flag; the current iteration completes and Run
shuts every client down. SIGTERM and SIGINT both route here.
*/
package engine
