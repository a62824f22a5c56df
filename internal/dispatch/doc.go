// Package dispatch sends device commands and scene executions to the
// cloud.
//
// Commands are validated against the capability registry before any
// network call, so an unknown command or a wrong argument count fails
// locally and instantly. A command the cloud accepts is reflected into
// the directory as an optimistic, command-sourced value for the
// attributes it predictably changes; the confirming event or poll then
// replaces it. A command the cloud rejects changes nothing and is never
// retried automatically: "turn on the light" re-sent thirty seconds
// later is a new surprise, not a recovery.
package dispatch
