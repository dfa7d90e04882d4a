// Package metrics collects service counters and periodically reports them to
// Redis for centralized dashboards. Reporting is optional: without a Redis
// client the collector still serves in-process snapshots.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is a point-in-time snapshot of the service counters.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	RequestsReceived uint64 `json:"requests_received"`
	RequestsServed   uint64 `json:"requests_served"`
	AlertsPublished  uint64 `json:"alerts_published"`
	Errors           uint64 `json:"errors"`

	AvgRequestLatencyNs float64 `json:"avg_request_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector accumulates counters and reports them to Redis.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	requestsReceived atomic.Uint64
	requestsServed   atomic.Uint64
	alertsPublished  atomic.Uint64
	errors           atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a metrics collector for a service. redisClient may be
// nil, in which case reporting is disabled and only snapshots are available.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic reporting to Redis until the context is cancelled or
// Stop is called. A final report is written on shutdown.
func (c *Collector) Start(ctx context.Context) {
	if c.redis == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background())
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background())
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the reporting loop and waits for the final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived counts an inbound request.
func (c *Collector) RecordReceived() {
	c.requestsReceived.Add(1)
}

// RecordProcessed counts a served request and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.requestsServed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordPublished counts an alert fanned out to the real-time channel.
func (c *Collector) RecordPublished() {
	c.alertsPublished.Add(1)
}

// RecordError counts a request that failed with an internal error.
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// IncrementCustom increments a named counter.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	snapshot := &ServiceMetrics{
		ServiceName:      c.serviceName,
		StartedAt:        c.startedAt,
		LastUpdated:      time.Now().UTC(),
		RequestsReceived: c.requestsReceived.Load(),
		RequestsServed:   c.requestsServed.Load(),
		AlertsPublished:  c.alertsPublished.Load(),
		Errors:           c.errors.Load(),
	}

	if latencyCount := c.latencyCount.Load(); latencyCount > 0 {
		snapshot.AvgRequestLatencyNs = float64(c.totalLatencyNs.Load()) / float64(latencyCount)
	}

	c.customMu.RLock()
	if len(c.customCounters) > 0 {
		snapshot.CustomCounters = make(map[string]uint64, len(c.customCounters))
		for name, counter := range c.customCounters {
			snapshot.CustomCounters[name] = counter.Load()
		}
	}
	c.customMu.RUnlock()

	return snapshot
}

func (c *Collector) writeMetrics(ctx context.Context) {
	snapshot := c.GetSnapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics snapshot", "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, payload, MetricsTTL).Err(); err != nil {
		slog.Warn("Failed to write metrics to Redis", "key", key, "error", err)
	}
}

// ConnectRedis creates and validates a Redis connection.
// Returns the client and nil on success, or nil and an error on failure.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}
