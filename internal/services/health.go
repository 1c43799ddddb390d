package services

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/database"
	"github.com/temcen/gamerec/pkg/models"
)

// ModelStatusProvider reports the state of the served model.
type ModelStatusProvider interface {
	Status() models.ModelStatus
}

type HealthService struct {
	logger *logrus.Logger
	db     *database.Database
	models ModelStatusProvider
	// consumer is nil when asynchronous refresh is disabled.
	consumer RefreshConsumerStats

	critical    map[string]func(ctx context.Context) error
	nonCritical map[string]func(ctx context.Context) error

	// Prometheus metrics
	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	systemMetrics       *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
	consumerLag         prometheus.Gauge
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Latency     time.Duration          `json:"latency,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func NewHealthService(logger *logrus.Logger, db *database.Database, modelStatus ModelStatusProvider, reg prometheus.Registerer) *HealthService {
	factory := promauto.With(reg)

	hs := &HealthService{
		logger:      logger,
		db:          db,
		models:      modelStatus,
		critical:    make(map[string]func(ctx context.Context) error),
		nonCritical: make(map[string]func(ctx context.Context) error),

		healthCheckStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),

		lastHealthCheck: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_timestamp",
			Help: "Timestamp of last health check",
		}, []string{"service"}),

		systemMetrics: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "system_info",
			Help: "System information metrics",
		}, []string{"metric_type"}),

		dbConnectionMetrics: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "database_connection_pool_usage",
			Help: "Database connection pool usage",
		}, []string{"database", "state"}),

		consumerLag: factory.NewGauge(prometheus.GaugeOpts{
			Name: "refresh_consumer_lag",
			Help: "Snapshot refresh events not yet read by this instance",
		}),
	}

	hs.critical["model"] = hs.checkModel
	if db != nil && db.PG != nil {
		hs.critical["postgresql"] = func(ctx context.Context) error { return db.PG.Ping(ctx) }
	}
	if db != nil && db.Redis != nil {
		hs.nonCritical["redis"] = func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() }
	}

	return hs
}

// WatchRefreshConsumer adds the refresh consumer's lag to health details and
// the refresh_consumer_lag gauge.
func (s *HealthService) WatchRefreshConsumer(consumer RefreshConsumerStats) {
	s.consumer = consumer
}

// Start runs the background collectors until ctx is done.
func (s *HealthService) Start(ctx context.Context) {
	go s.collectSystemMetrics(ctx)
	go s.collectDatabaseMetrics(ctx)
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	started := time.Now()
	status := &HealthStatus{
		Timestamp: started,
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, name := range sortedCheckNames(s.critical) {
		if err := s.runCheck(ctx, s.critical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for _, name := range sortedCheckNames(s.nonCritical) {
		if err := s.runCheck(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	// Overall status
	if allCriticalHealthy {
		if len(status.NonCritical) == 0 {
			status.Status = "healthy"
		} else {
			status.Status = "degraded"
		}
	} else {
		status.Status = "unhealthy"
	}

	if s.models != nil {
		modelStatus := s.models.Status()
		status.Details = map[string]interface{}{
			"model_version": modelStatus.Version,
			"building":      modelStatus.Building,
		}
	}
	if lag, ok := s.recordConsumerLag(); ok {
		if status.Details == nil {
			status.Details = map[string]interface{}{}
		}
		status.Details["refresh_consumer_lag"] = lag
	}
	status.Latency = time.Since(started)

	return status
}

func (s *HealthService) runCheck(ctx context.Context, check func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return check(ctx)
}

func (s *HealthService) checkModel(ctx context.Context) error {
	if s.models == nil {
		return fmt.Errorf("model service not configured")
	}
	status := s.models.Status()
	if !status.Ready {
		if status.LastError != "" {
			return fmt.Errorf("model not built: %s", status.LastError)
		}
		return fmt.Errorf("model not built")
	}
	return nil
}

func (s *HealthService) recordConsumerLag() (int64, bool) {
	if s.consumer == nil {
		return 0, false
	}
	stats, ok := s.consumer.ConsumerStats()
	if !ok {
		return 0, false
	}
	s.consumerLag.Set(float64(stats.Lag))
	return stats.Lag, true
}

func sortedCheckNames(checks map[string]func(ctx context.Context) error) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// collectSystemMetrics collects system-level metrics
func (s *HealthService) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var memStats runtime.MemStats

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runtime.ReadMemStats(&memStats)

		s.systemMetrics.WithLabelValues("memory_alloc_bytes").Set(float64(memStats.Alloc))
		s.systemMetrics.WithLabelValues("memory_sys_bytes").Set(float64(memStats.Sys))
		s.systemMetrics.WithLabelValues("goroutines_count").Set(float64(runtime.NumGoroutine()))
		s.systemMetrics.WithLabelValues("gc_runs_total").Set(float64(memStats.NumGC))

		// Record GC pause time
		if len(memStats.PauseNs) > 0 {
			lastPause := memStats.PauseNs[(memStats.NumGC+255)%256]
			s.systemMetrics.WithLabelValues("gc_pause_ns").Set(float64(lastPause))
		}

		s.recordConsumerLag()
	}
}

// collectDatabaseMetrics collects database connection metrics
func (s *HealthService) collectDatabaseMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.db == nil || s.db.PG == nil {
			continue
		}

		stats := s.db.PG.Stat()

		s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))

		if stats.MaxConns() > 0 {
			usage := float64(stats.AcquiredConns()) / float64(stats.MaxConns()) * 100
			s.dbConnectionMetrics.WithLabelValues("postgresql", "usage_percent").Set(usage)
		}
	}
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
