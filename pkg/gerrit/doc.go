/*
Package gerrit owns the per-source SSH machinery: the client that holds
the connection, the event stream that reads `gerrit stream-events`, the
bounded event queue and the failed-event buffer.

# Client lifecycle

A client is constructed inactive from its connection tuple (host, port,
username, key file) and activated lazily by the engine. Activation
dials SSH with the configured private key, starts a transport keepalive
and opens a fresh event stream. Liveness is the conjunction of both: a
lost transport or a stopped stream makes IsActive report false, and the
engine reconnects on a later iteration.

Two clients are interchangeable exactly when their connection tuples
are equal; config reload uses that to carry live connections across a
reload instead of reconnecting.

# Event flow

	SSH session ── line ──> Stream.run ──> Client.QueueEvent
	                                          │ parse (skip bad lines)
	                                          ▼
	                         bounded FIFO (blocks when full)
	                                          │
	                 engine GetEvent(timeout) ─┘

The stream reader blocks rather than drops when the queue is full.
Events whose action found the target down sit in the failed buffer
until EnqueueFailedEvents moves them back, in order, onto the tail of
the main queue, behind any events already waiting there.

# Shutdown

Shutdown stops the stream cooperatively: the running flag is cleared,
the transport is closed to unblock the reader, and only then is the
reader awaited. This ordering prevents a final event from being read
during teardown.
*/
package gerrit
