// Package progress provides a thread-safe step counter for reporting the
// progress of long-running batch operations across goroutines.
//
// A Tracker counts completed steps toward a total and signals completion to
// waiting goroutines. The producing side calls Advance and MarkAsCompleted;
// any number of other goroutines may poll the counters or block in
// WaitForCompletion. The magic package drives a shared Tracker during batch
// identification so callers can render progress from another goroutine.
//
// # Basic Usage
//
// Share one tracker between a worker and a reporting goroutine:
//
//	tracker := progress.NewTracker(1)
//
//	go func() {
//		results, err := m.TryIdentifyDirectory(dir, magic.WithTracker(tracker))
//		// ...
//	}()
//
//	for !tracker.TryWaitForCompletion(100 * time.Millisecond) {
//		fmt.Printf("\r%s", tracker.CompletionPercentage())
//	}
//
// # Concurrency
//
// Every Tracker method is safe for concurrent use. Waiting for completion
// from the goroutine responsible for advancing the tracker deadlocks; keep
// producers and waiters on separate goroutines.
package progress
