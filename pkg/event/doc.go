/*
Package event defines the structured record produced from one line of a
gerrit `stream-events` session, and the parser that builds it.

Event kinds match the top-level `type` field of the JSON emitted by the
server (comment-added, ref-updated, change-merged, ...). Typed sub-records
(Change, PatchSet, RefUpdate, Account) cover the fields the engine and the
shipped actions read; everything else survives in the Raw property bag so
plugin actions can reach fields the typed model does not name.

Field presence is the capability probe: Project() falls back from the
change record to the ref-update record, and an event carrying neither has
no project and is skipped by the engine.

Structures follow the gerrit JSON documentation:
https://gerrit-review.googlesource.com/Documentation/json.html
*/
package event
