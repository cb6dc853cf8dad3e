// Package services provides shared error classification markers and context
// annotations used across scanning, review, and sanitization components.
package services
