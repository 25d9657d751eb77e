package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/util/workqueue"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestQueueDeduplicates(t *testing.T) {
	q := NewQueue(QueueOptions{})
	defer q.ShutDown()

	q.Add("ns/a")
	q.Add("ns/a")
	q.Add("ns/b")
	q.Add("ns/a")
	assert.Equal(t, 2, q.Len())
}

func TestQueueDirtyKeyGoesToFront(t *testing.T) {
	q := NewQueue(QueueOptions{})
	defer q.ShutDown()

	q.Add("ns/a")
	q.Add("ns/b")

	key, _ := q.Get()
	require.Equal(t, "ns/a", key)

	// Changed while in flight: held back until Done, not handed to a
	// second worker.
	q.Add("ns/a")
	q.Add("ns/c")
	assert.Equal(t, 2, q.Len())

	q.Done("ns/a")
	assert.Equal(t, 3, q.Len())

	var order []string
	for range 3 {
		k, _ := q.Get()
		order = append(order, k)
		q.Done(k)
	}
	assert.Equal(t, []string{"ns/a", "ns/b", "ns/c"}, order)
}

func TestQueueCleanDoneDoesNotRequeue(t *testing.T) {
	q := NewQueue(QueueOptions{})
	defer q.ShutDown()

	q.Add("ns/a")
	key, _ := q.Get()
	q.Done(key)
	assert.Equal(t, 0, q.Len())
}

func TestQueueAddAfter(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	q := NewQueue(QueueOptions{Clock: fc})
	defer q.ShutDown()

	q.AddAfter("ns/a", time.Minute)
	assert.Equal(t, 0, q.Len())

	fc.Step(30 * time.Second)
	assert.Never(t, func() bool { return q.Len() > 0 }, 50*time.Millisecond, 10*time.Millisecond)

	fc.Step(30 * time.Second)
	require.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestQueueRateLimited(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	q := NewQueue(QueueOptions{
		Clock:       fc,
		RateLimiter: workqueue.NewTypedItemExponentialFailureRateLimiter[string](time.Second, time.Minute),
	})
	defer q.ShutDown()

	q.AddRateLimited("ns/a")
	q.AddRateLimited("ns/a")
	assert.Equal(t, 2, q.NumRequeues("ns/a"))

	q.Forget("ns/a")
	assert.Equal(t, 0, q.NumRequeues("ns/a"))

	fc.Step(2 * time.Second)
	require.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestQueueShutDown(t *testing.T) {
	q := NewQueue(QueueOptions{})
	q.ShutDown()
	_, quit := q.Get()
	assert.True(t, quit)
	assert.True(t, q.ShuttingDown())
}
