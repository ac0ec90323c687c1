// Package crawler defines the core harvest types shared across subsystems:
// listing links, organization records, the persisted checkpoint, the immutable
// run configuration, and the interfaces the pipeline depends on.
package crawler
