// Package queue persists transcription jobs in SQLite and exposes the
// lifecycle operations the workflow manager and CLI drive.
package queue
