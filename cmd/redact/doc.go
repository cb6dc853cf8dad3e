// Command redact is the operator CLI: manage talks and transcripts, trigger
// scans, review findings, and emit sanitized documents. It talks to a running
// redactd over its unix socket and falls back to direct database access when
// no daemon is up.
package main
