// Package logging configures slog handlers shared by the daemon and CLI: a
// console handler for interactive output and a JSON handler for log files and
// machine consumption.
package logging
