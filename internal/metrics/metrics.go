package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_tasks_created_total",
			Help: "Total number of construction tasks created",
		},
	)

	// 前推计算次数
	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_propagations_total",
			Help: "Total number of date propagation runs",
		},
		[]string{"trigger"}, // update_task, add_dependency
	)

	// 前推计算耗时
	propagationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_propagation_duration_seconds",
			Help:    "Date propagation duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// 单次前推修改的任务数
	propagationChangedTasks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_propagation_changed_tasks",
			Help:    "Number of tasks whose dates changed in one propagation",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
		},
	)

	// 被拒绝的修改
	rejectedMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_rejected_mutations_total",
			Help: "Total number of rejected scheduling mutations",
		},
		[]string{"operation", "reason"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 任务状态分布
	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schedule_tasks_by_status",
			Help: "Number of live construction tasks by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(propagationsTotal)
	prometheus.MustRegister(propagationDuration)
	prometheus.MustRegister(propagationChangedTasks)
	prometheus.MustRegister(rejectedMutationsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(tasksByStatus)

	// Go 运行时指标,已注册时忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated() {
	tasksCreatedTotal.Inc()
}

// RecordPropagation 记录一次前推计算
func RecordPropagation(trigger string, seconds float64, changed int) {
	propagationsTotal.WithLabelValues(trigger).Inc()
	propagationDuration.Observe(seconds)
	propagationChangedTasks.Observe(float64(changed))
}

// RecordRejected 记录被拒绝的修改,reason 为错误码
func RecordRejected(operation, reason string) {
	rejectedMutationsTotal.WithLabelValues(operation, reason).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTasksByStatus 更新任务状态分布指标
func UpdateTasksByStatus(counts map[string]int64) {
	tasksByStatus.Reset()
	for status, n := range counts {
		tasksByStatus.WithLabelValues(status).Set(float64(n))
	}
}
