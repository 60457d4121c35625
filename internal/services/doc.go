// Package services holds cross-cutting helpers shared by the workflow stages:
// error classification, context metadata carriers, and wrappers around the
// external tools the daemon shells out to.
package services
