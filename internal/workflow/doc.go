// Package workflow drives queued transcription jobs through their stages:
// fetch, convert, transcribe, export. It owns stage transitions, heartbeats,
// and failure classification.
package workflow
