// Package core holds editor sessions and generation runs for the web layer.
//
// # Sessions
//
// A [Session] is one user's editor: the placed fields, the drag
// controller, the template surface, the parsed data table and the uploaded
// signature and seal images. Every operation on a session runs under the
// session's mutex and completes without I/O; parsing of uploaded files
// happens before the lock is taken and only the result is committed.
// Sessions are created by [Service.CreateSession], which also issues a
// bearer token, and are evicted after SESSION_TTL of inactivity by the
// sweeper started with [Service.StartSweeper].
//
// # Generation runs
//
// [Service.StartRun] takes a snapshot of the session's fields and rows,
// reserves a slot on the shared generation limiter and runs a
// [generate.Driver] in the background. Progress is streamed with
// [Service.SubscribeRun]. Finished documents are moved into the artifact
// store and served by index or as one ZIP archive until they expire.
//
// # Error Handling
//
// Technical errors are mapped to user messages with [MapError]; see
// error_messages.go for the code catalogue.
package core
