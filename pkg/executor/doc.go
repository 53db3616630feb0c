// Package executor runs jobs on goroutines with a bounded number of job
// bodies executing at once.
//
// Submission never blocks the caller: every job gets its own goroutine that
// waits for a slot on a weighted semaphore before running. Results and errors
// stay on the job's Handle, so one failing job never affects another.
//
// Basic usage:
//
//	ex := executor.New(10)
//	handles := executor.Map(ctx, ex, fetch, uris)
//	for h := range executor.Completed(handles) {
//		uri, err := h.Result()
//		...
//	}
package executor
