package controller

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/utils/clock"
)

// QueueOptions configures a Queue.
type QueueOptions struct {
	// Name labels the queue's metrics. Metrics are only reported for named queues.
	Name string

	// RateLimiter computes delays for AddRateLimited.
	// Defaults to DefaultRateLimiter().
	RateLimiter workqueue.TypedRateLimiter[string]

	// MetricsProvider receives the queue's depth, latency and retry metrics.
	MetricsProvider workqueue.MetricsProvider

	// Clock drives delayed adds. Defaults to the real clock.
	Clock clock.WithTicker
}

// DefaultRateLimiter combines per-key exponential backoff with an overall
// token bucket.
func DefaultRateLimiter() workqueue.TypedRateLimiter[string] {
	return workqueue.NewTypedMaxOfRateLimiter(
		workqueue.NewTypedItemExponentialFailureRateLimiter[string](time.Second, 5*time.Minute),
		&workqueue.TypedBucketRateLimiter[string]{Limiter: rate.NewLimiter(rate.Limit(10), 100)},
	)
}

// Queue is a deduplicating, delaying, rate-limited queue of namespace/name keys.
//
// A key is handed to at most one worker at a time. A key added while it is
// being processed is marked dirty and, once the worker calls Done, goes back
// to the front of the queue ahead of keys that were never picked up.
type Queue struct {
	workqueue.TypedRateLimitingInterface[string]

	fifo *frontQueue
}

// NewQueue creates a Queue.
func NewQueue(opts QueueOptions) *Queue {
	if opts.RateLimiter == nil {
		opts.RateLimiter = DefaultRateLimiter()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	fifo := &frontQueue{finishing: make(map[string]int)}
	base := workqueue.NewTypedWithConfig(workqueue.TypedQueueConfig[string]{
		Name:            opts.Name,
		MetricsProvider: opts.MetricsProvider,
		Clock:           opts.Clock,
		Queue:           fifo,
	})
	delaying := workqueue.NewTypedDelayingQueueWithConfig(workqueue.TypedDelayingQueueConfig[string]{
		Name:            opts.Name,
		MetricsProvider: opts.MetricsProvider,
		Clock:           opts.Clock,
		Queue:           base,
	})
	return &Queue{
		TypedRateLimitingInterface: workqueue.NewTypedRateLimitingQueueWithConfig(opts.RateLimiter,
			workqueue.TypedRateLimitingQueueConfig[string]{
				Name:            opts.Name,
				MetricsProvider: opts.MetricsProvider,
				Clock:           opts.Clock,
				DelayingQueue:   delaying,
			}),
		fifo: fifo,
	}
}

// Done marks key as no longer being processed. If it was added again in the
// meantime it is requeued at the front.
func (q *Queue) Done(key string) {
	q.fifo.markFinishing(key, 1)
	defer q.fifo.markFinishing(key, -1)
	q.TypedRateLimitingInterface.Done(key)
}

// frontQueue is the FIFO underneath the workqueue. The workqueue calls it
// while holding its own lock; only the finishing set is shared with callers of
// Queue.Done and needs its own.
type frontQueue struct {
	items []string

	mu        sync.Mutex
	finishing map[string]int
}

var _ workqueue.Queue[string] = (*frontQueue)(nil)

func (f *frontQueue) markFinishing(key string, delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.finishing[key] + delta; n > 0 {
		f.finishing[key] = n
	} else {
		delete(f.finishing, key)
	}
}

func (f *frontQueue) isFinishing(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishing[key] > 0
}

func (f *frontQueue) Touch(string) {}

func (f *frontQueue) Push(key string) {
	if f.isFinishing(key) {
		f.items = append([]string{key}, f.items...)
		return
	}
	f.items = append(f.items, key)
}

func (f *frontQueue) Len() int {
	return len(f.items)
}

func (f *frontQueue) Pop() string {
	key := f.items[0]
	f.items[0] = ""
	f.items = f.items[1:]
	return key
}
