package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/database"
	"github.com/mautops/schedule-gin/internal/repository"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var scope = service.Scope{OrganizationID: "org-1", ProjectID: "prj-1", UserID: "u-1"}

// recordingNotifier 记录推送事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []*service.ScheduleEvent
}

func (n *recordingNotifier) NotifyProject(_, _ string, event interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event.(*service.ScheduleEvent))
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	svc      service.SchedulingService
	notifier *recordingNotifier
	logs     *test.Hook
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "schedule.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	notifier := &recordingNotifier{}
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	svc := service.NewSchedulingService(db, config.SchedulerConfig{
		TimeoutBase:    2 * time.Second,
		TimeoutPerTask: time.Millisecond,
	}, audit, notifier, logger)
	return &fixture{db: db, svc: svc, notifier: notifier, logs: hook}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func qty(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(t *testing.T, s string) *service.Date {
	t.Helper()
	d, err := service.NewDate(s)
	require.NoError(t, err)
	return &d
}

func someDate(t *testing.T, s string) service.Optional[service.Date] {
	return service.Some(*date(t, s))
}

func fmtDate(d *service.Date) string {
	if d == nil {
		return ""
	}
	return d.Format(scheduling.DateLayout)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(scheduling.DateLayout)
}

// createTask 创建自定义名称任务,start 为空时不设日期,dur 为 0 且无日期时不设工期
func (f *fixture) createTask(t *testing.T, name, start string, dur int) *service.TaskView {
	t.Helper()
	req := &service.CreateTaskRequest{Quantity: qty("1"), CustomName: strPtr(name)}
	if start != "" {
		req.PlannedStartDate = date(t, start)
	}
	if start != "" || dur > 0 {
		req.DurationDays = intPtr(dur)
	}
	view, err := f.svc.CreateTask(context.Background(), scope, req)
	require.NoError(t, err)
	return view
}

func (f *fixture) addEdge(t *testing.T, pred, succ string, typ scheduling.DependencyType, lag int) *service.AddDependencyResult {
	t.Helper()
	res, err := f.svc.AddDependency(context.Background(), scope, &service.AddDependencyRequest{
		PredecessorTaskID: pred,
		SuccessorTaskID:   succ,
		Type:              string(typ),
		LagDays:           lag,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) task(t *testing.T, id string) *service.TaskView {
	t.Helper()
	view, err := f.svc.GetTask(context.Background(), scope, id)
	require.NoError(t, err)
	return view
}

func changeFor(changes []scheduling.DateChange, id string) (scheduling.DateChange, bool) {
	for _, c := range changes {
		if c.TaskID == id {
			return c, true
		}
	}
	return scheduling.DateChange{}, false
}
