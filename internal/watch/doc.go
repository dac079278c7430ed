// Package watch re-runs ingestion jobs when their files change.
//
// The directories holding each job's globs are watched with fsnotify. Write
// and create events for a file a job owns start a per-job debounce timer;
// when it fires the job is queued and ingested again. Unchanged files are
// skipped by the usual content hash check.
package watch
