package container_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/container"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "container.db")
	cfg.Metrics.CollectInterval = time.Hour
	return cfg
}

func newLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestContainer_NewContainer(t *testing.T) {
	cfg := testConfig(t)

	ctr, err := container.NewContainer(cfg, newLogger(), true)
	require.NoError(t, err)
	ctr.Start()
	defer func() {
		assert.NoError(t, ctr.Close())
	}()

	assert.NotNil(t, ctr.DB())
	assert.NotNil(t, ctr.Hub())
	assert.NotNil(t, ctr.Scheduling())
	assert.NotNil(t, ctr.AuditLog())
	assert.Nil(t, ctr.Validator(), "validator requires a jwt secret")

	scope := service.Scope{OrganizationID: "org-1", ProjectID: "prj-1", UserID: "u-1"}
	task, err := ctr.Scheduling().CreateTask(context.Background(), scope, &service.CreateTaskRequest{Quantity: qty("1"), CustomName: strPtr("Excavation")})
	require.NoError(t, err)

	schedule, err := ctr.Scheduling().GetProjectSchedule(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, schedule.Tasks, 1)
	assert.Equal(t, task.ID, schedule.Tasks[0].ID)
}

func TestContainer_WithValidator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "secret"
	cfg.Metrics.Enabled = false

	ctr, err := container.NewContainer(cfg, newLogger(), true)
	require.NoError(t, err)
	defer ctr.Close()

	require.NotNil(t, ctr.Validator())
	token, err := ctr.Validator().IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	claims, err := ctr.Validator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.OrganizationID)
}

func TestContainer_ApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	ctr, err := container.NewContainer(cfg, newLogger(), true)
	require.NoError(t, err)
	defer ctr.Close()

	scope := service.Scope{OrganizationID: "org-1", ProjectID: "prj-1"}
	ctx := context.Background()
	a, err := ctr.Scheduling().CreateTask(ctx, scope, &service.CreateTaskRequest{Quantity: qty("1"), CustomName: strPtr("Excavation")})
	require.NoError(t, err)
	b, err := ctr.Scheduling().CreateTask(ctx, scope, &service.CreateTaskRequest{Quantity: qty("1"), CustomName: strPtr("Pour slab")})
	require.NoError(t, err)

	updated := *cfg
	updated.Scheduler.TimeoutBase = -time.Second
	ctr.ApplyConfig(&updated)
	assert.Equal(t, -time.Second, ctr.Config().Scheduler.TimeoutBase)

	_, err = ctr.Scheduling().AddDependency(ctx, scope, &service.AddDependencyRequest{
		PredecessorTaskID: a.ID,
		SuccessorTaskID:   b.ID,
	})
	var timeoutErr *scheduling.ScheduleTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func strPtr(s string) *string {
	return &s
}

func qty(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
