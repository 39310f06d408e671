package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/srg/blethermo/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := pipeline.NewQueue[int]()
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Send(i))
	}
	assert.Equal(t, 1000, q.Len())

	for i := 0; i < 1000; i++ {
		v, err := q.Receive(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	m := q.GetMetrics()
	assert.Equal(t, int64(1000), m.Written)
	assert.Equal(t, int64(1000), m.Processed)
}

func TestQueue_TryReceive(t *testing.T) {
	q := pipeline.NewQueue[string]()

	_, ok := q.TryReceive()
	assert.False(t, ok, "empty queue MUST NOT block nor return a value")

	require.NoError(t, q.Send("a"))
	v, ok := q.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestQueue_CloseDrainsThenFails(t *testing.T) {
	q := pipeline.NewQueue[int]()
	require.NoError(t, q.Send(1))
	require.NoError(t, q.Send(2))
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Send(3), pipeline.ErrQueueClosed)
	assert.Equal(t, int64(1), q.GetMetrics().Rejected)

	v, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrQueueClosed)
}

func TestQueue_ReceiveBlocksUntilSend(t *testing.T) {
	q := pipeline.NewQueue[int]()

	got := make(chan int, 1)
	go func() {
		v, err := q.Receive(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Receive returned before any Send")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Send(42))
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake up after Send")
	}
}

func TestQueue_ReceiveHonorsContext(t *testing.T) {
	q := pipeline.NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseWakesAllWaiters(t *testing.T) {
	q := pipeline.NewQueue[int]()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Receive(context.Background())
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released by Close")
	}
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, pipeline.ErrQueueClosed)
	}
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := pipeline.NewQueue[[2]int]()
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Send([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	next := make([]int, producers)
	for {
		v, err := q.Receive(context.Background())
		if err != nil {
			require.ErrorIs(t, err, pipeline.ErrQueueClosed)
			break
		}
		require.Equal(t, next[v[0]], v[1], "producer %d out of order", v[0])
		next[v[0]]++
	}
	for p := range next {
		assert.Equal(t, perProducer, next[p])
	}
}
