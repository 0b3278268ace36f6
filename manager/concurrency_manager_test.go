package manager

import (
	"context"
	"dspgend/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireSerializesRuns(t *testing.T) {
	cm := NewConcurrencyManager(map[string]int{"dspgen": 1}, 1, 0, nil)
	defer cm.Shutdown()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok := cm.Acquire(context.Background(), "dspgen")
			if !assert.True(t, ok) {
				return
			}
			defer release()
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxRunning)
				if n <= cur || atomic.CompareAndSwapInt32(&maxRunning, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning)
	queued, processing := cm.Snapshot("dspgen")
	assert.Zero(t, queued)
	assert.Zero(t, processing)
}

func TestAcquireQueueTimeout(t *testing.T) {
	cm := NewConcurrencyManager(map[string]int{"dspgen": 1}, 1, 50*time.Millisecond, nil)
	defer cm.Shutdown()

	release, ok := cm.Acquire(context.Background(), "dspgen")
	require.True(t, ok)
	defer release()

	_, ok = cm.Acquire(context.Background(), "dspgen")
	assert.False(t, ok)

	queued, processing := cm.Snapshot("dspgen")
	assert.Zero(t, queued)
	assert.Equal(t, 1, processing)
}

func TestAcquireContextCancelled(t *testing.T) {
	cm := NewConcurrencyManager(map[string]int{"dspgen": 1}, 1, 0, nil)
	defer cm.Shutdown()

	release, ok := cm.Acquire(context.Background(), "dspgen")
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok = cm.Acquire(ctx, "dspgen")
	assert.False(t, ok)
}

func TestUnknownDeviceUsesDefault(t *testing.T) {
	cm := NewConcurrencyManager(nil, 2, 0, nil)
	defer cm.Shutdown()

	r1, ok := cm.Acquire(context.Background(), "dspgen2")
	require.True(t, ok)
	r2, ok := cm.Acquire(context.Background(), "other")
	require.True(t, ok)

	_, processing := cm.Snapshot(DefaultDevice)
	assert.Equal(t, 2, processing)

	r1()
	r2()
	r2() // releasing twice must not free a second slot
	_, processing = cm.Snapshot(DefaultDevice)
	assert.Zero(t, processing)
}

func TestSlotGaugesFollowAcquire(t *testing.T) {
	prom := metrics.New()
	cm := NewConcurrencyManager(map[string]int{"dspgen": 1}, 1, 0, prom)
	defer cm.Shutdown()
	queued, processing := prom.Slot("dspgen")

	release, ok := cm.Acquire(context.Background(), "dspgen")
	require.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(processing))
	assert.Equal(t, 0.0, testutil.ToFloat64(queued))

	waiting := make(chan bool)
	go func() {
		r, ok := cm.Acquire(context.Background(), "dspgen")
		if ok {
			r()
		}
		waiting <- ok
	}()
	require.Eventually(t, func() bool { return testutil.ToFloat64(queued) == 1 }, time.Second, 5*time.Millisecond)

	release()
	assert.True(t, <-waiting)
	assert.Equal(t, 0.0, testutil.ToFloat64(processing))
	assert.Equal(t, 0.0, testutil.ToFloat64(queued))
}
