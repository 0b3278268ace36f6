package manager

import (
	"context"
	"dspgend/metrics"
	"sync"
	"time"
)

// DefaultDevice is the slot key used for devices that were not configured.
const DefaultDevice = "default"

// DeviceMetrics holds the slot counters for a specific device.
type DeviceMetrics struct {
	Device                 string
	QueueSize              int
	ProcessingCount        int
	LastLogTime            time.Time
	queueSizeChanged       bool
	processingCountChanged bool
	mu                     sync.Mutex
}

// ConcurrencyManager limits how many program runs may use a device at the same time.
type ConcurrencyManager struct {
	semMap       map[string]chan struct{}
	metricsMap   map[string]*DeviceMetrics
	mu           sync.Mutex
	queueTimeout time.Duration
	prom         *metrics.Metrics
	closed       chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// NewConcurrencyManager creates one semaphore per configured device plus a default one of defaultSize.
// A queueTimeout of zero makes Acquire wait until its context ends.
func NewConcurrencyManager(devices map[string]int, defaultSize int, queueTimeout time.Duration, prom *metrics.Metrics) *ConcurrencyManager {
	if defaultSize <= 0 {
		defaultSize = 1
	}
	cm := &ConcurrencyManager{
		semMap:       make(map[string]chan struct{}),
		metricsMap:   make(map[string]*DeviceMetrics),
		queueTimeout: queueTimeout,
		prom:         prom,
		closed:       make(chan struct{}),
	}

	for device, size := range devices {
		if size <= 0 {
			log.Warnf("Device '%s' has invalid size %d. Setting to default size %d.", device, size, defaultSize)
			size = defaultSize
		}
		cm.semMap[device] = make(chan struct{}, size)
		cm.metricsMap[device] = &DeviceMetrics{Device: device}
	}

	if _, ok := cm.semMap[DefaultDevice]; !ok {
		cm.semMap[DefaultDevice] = make(chan struct{}, defaultSize)
		cm.metricsMap[DefaultDevice] = &DeviceMetrics{Device: DefaultDevice}
	}

	for _, m := range cm.metricsMap {
		prom.SetSlot(m.Device, 0, 0)
		cm.wg.Add(1)
		go cm.monitorMetrics(m)
	}

	return cm
}

// Acquire waits for a free slot on the device.
// It returns false when the queue timeout passes or ctx ends first; release must be called exactly once otherwise.
func (cm *ConcurrencyManager) Acquire(ctx context.Context, device string) (func(), bool) {
	cm.mu.Lock()
	sem, exists := cm.semMap[device]
	if !exists {
		sem = cm.semMap[DefaultDevice]
		device = DefaultDevice
	}
	m := cm.metricsMap[device]
	cm.mu.Unlock()

	m.incrementQueue()
	cm.publish(m)

	var timeout <-chan time.Time
	if cm.queueTimeout > 0 {
		timer := time.NewTimer(cm.queueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sem <- struct{}{}:
		m.incrementProcessing()
		m.decrementQueue()
		cm.publish(m)

		var once sync.Once
		return func() {
			once.Do(func() {
				m.decrementProcessing()
				<-sem
				cm.publish(m)
			})
		}, true
	case <-timeout:
		log.Warnf("Device: %s | gave up waiting for a slot after %s", device, cm.queueTimeout)
	case <-ctx.Done():
		log.Debugf("Device: %s | stopped waiting for a slot: %v", device, ctx.Err())
	}
	m.decrementQueue()
	cm.publish(m)
	return nil, false
}

// Snapshot returns the queued and processing counts of a device.
func (cm *ConcurrencyManager) Snapshot(device string) (queued, processing int) {
	cm.mu.Lock()
	m, ok := cm.metricsMap[device]
	cm.mu.Unlock()
	if !ok {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QueueSize, m.ProcessingCount
}

func (cm *ConcurrencyManager) publish(m *DeviceMetrics) {
	if cm.prom == nil {
		return
	}
	queued, processing := cm.Snapshot(m.Device)
	cm.prom.SetSlot(m.Device, queued, processing)
}

// monitorMetrics logs changes in the counters, at most once per second.
func (cm *ConcurrencyManager) monitorMetrics(m *DeviceMetrics) {
	defer cm.wg.Done()
	ticker := time.NewTicker(500 * time.Millisecond) // Check twice every second
	defer ticker.Stop()

	for {
		select {
		case <-cm.closed:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		currentTime := time.Now()
		if (m.queueSizeChanged || m.processingCountChanged) &&
			currentTime.Sub(m.LastLogTime) >= time.Second {
			log.Infof("Device: %s | Queued: %d | Processing: %d",
				m.Device, m.QueueSize, m.ProcessingCount)
			m.LastLogTime = currentTime
			m.resetChangeFlags()
		}
		m.mu.Unlock()
	}
}

// Methods for DeviceMetrics

func (m *DeviceMetrics) incrementQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueSize++
	m.queueSizeChanged = true
}

func (m *DeviceMetrics) decrementQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueueSize > 0 {
		m.QueueSize--
		m.queueSizeChanged = true
	}
}

func (m *DeviceMetrics) incrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessingCount++
	m.processingCountChanged = true
}

func (m *DeviceMetrics) decrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProcessingCount > 0 {
		m.ProcessingCount--
		m.processingCountChanged = true
	}
}

func (m *DeviceMetrics) resetChangeFlags() {
	m.queueSizeChanged = false
	m.processingCountChanged = false
}

// Shutdown stops the monitoring goroutines. Slots already held stay valid until released.
func (cm *ConcurrencyManager) Shutdown() {
	cm.closeOnce.Do(func() {
		close(cm.closed)
	})
	cm.wg.Wait()
}
