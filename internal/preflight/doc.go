// Package preflight provides readiness checks for the filesystem paths and
// external services scribe depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to process jobs while
//     a required path is unusable.
//   - The CLI "scribe daemon status" command uses individual check functions
//     (CheckDirectoryAccess, CheckHuggingFace) to display health.
//
// Each check is gated by its config toggle -- unconfigured features are skipped.
package preflight
