package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/api"
	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/database"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
}

func setupServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "api.db")
	cfg.Auth.AllowHeaderTenant = true
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.Connect(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger, _ := test.NewNullLogger()
	svc := service.NewSchedulingService(db, cfg.Scheduler, nil, nil, logger)
	router := api.SetupRoutes(api.RouterDeps{
		Config:     cfg,
		DB:         db,
		Scheduling: svc,
		Validator:  auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Logger:     logger,
	})
	return &testServer{router: router, cfg: cfg}
}

// do 以 org-1 身份发起请求
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderOrganizationID, "org-1")
	req.Header.Set(auth.HeaderUserID, "u-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// data 解析成功响应中的 data 字段
func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	assert.Equal(t, 0, resp.Code)
	return resp.Data
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

const base = "/api/v1/projects/prj-1"

func (s *testServer) createTask(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	if _, ok := body["quantity"]; !ok {
		body["quantity"] = "1"
	}
	w := s.do(t, http.MethodPost, base+"/tasks", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data(t, w)["id"].(string)
}

// TestRoutes_ScheduleFlow 测试创建任务、添加依赖、前推与甘特图数据
func TestRoutes_ScheduleFlow(t *testing.T) {
	s := setupServer(t, nil)

	a := s.createTask(t, map[string]interface{}{"custom_name": "Excavation", "quantity": "120.5", "custom_unit": "m3"})
	b := s.createTask(t, map[string]interface{}{"custom_name": "Foundation", "duration_days": 3})

	w := s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{
		"predecessor_task_id": a, "successor_task_id": b, "type": "finish_to_start", "lag_days": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPatch, base+"/tasks/"+a, map[string]interface{}{
		"planned_start_date": "2024-01-01", "duration_days": 5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := data(t, w)
	task := result["task"].(map[string]interface{})
	assert.Equal(t, "2024-01-06", task["planned_end_date"])
	assert.Equal(t, true, task["dates_pinned"])
	changes := result["propagated_changes"].([]interface{})
	require.Len(t, changes, 1)
	change := changes[0].(map[string]interface{})
	assert.Equal(t, b, change["task_id"])
	assert.Nil(t, change["old_start"])
	assert.Equal(t, "2024-01-08", change["new_start"])
	assert.Equal(t, "2024-01-11", change["new_end"])

	w = s.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	schedule := data(t, w)
	tasks := schedule["tasks"].([]interface{})
	require.Len(t, tasks, 2)
	first := tasks[0].(map[string]interface{})
	assert.Equal(t, "Excavation", first["name"])
	assert.Equal(t, "m3", first["unit"])
	assert.Equal(t, "120.5", first["quantity"])
	deps := schedule["dependencies"].([]interface{})
	require.Len(t, deps, 1)
	assert.Equal(t, float64(2), deps[0].(map[string]interface{})["lag_days"])
}

// TestRoutes_ErrorMapping 测试领域错误到 HTTP 状态码的映射
func TestRoutes_ErrorMapping(t *testing.T) {
	s := setupServer(t, nil)

	a := s.createTask(t, map[string]interface{}{"custom_name": "A", "planned_start_date": "2200-12-20", "duration_days": 5})
	b := s.createTask(t, map[string]interface{}{"custom_name": "B"})

	// 成环
	w := s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{"predecessor_task_id": a, "successor_task_id": b})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{"predecessor_task_id": b, "successor_task_id": a})
	assert.Equal(t, http.StatusConflict, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, "DEPENDENCY_CYCLE", body.ErrorCode)
	assert.Equal(t, []string{b, a, b}, body.TaskIDs)

	// 自环
	w = s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{"predecessor_task_id": a, "successor_task_id": a})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DEPENDENCY_SELF_LOOP", errorBody(t, w).ErrorCode)

	// 日期越界
	c := s.createTask(t, map[string]interface{}{"custom_name": "C"})
	w = s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{"predecessor_task_id": a, "successor_task_id": c, "lag_days": 30})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{c}, errorBody(t, w).TaskIDs)

	// 状态回退
	w = s.do(t, http.MethodPost, base+"/tasks/"+c+"/status", map[string]interface{}{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), data(t, w)["progress_percent"])
	w = s.do(t, http.MethodPost, base+"/tasks/"+c+"/status", map[string]interface{}{"status": "in_progress"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", errorBody(t, w).ErrorCode)

	// 不存在
	w = s.do(t, http.MethodGet, base+"/tasks/tsk-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorBody(t, w).ErrorCode)

	// 参数错误
	w = s.do(t, http.MethodPost, base+"/tasks", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, w).ErrorCode)

	w = s.do(t, http.MethodPatch, base+"/tasks/"+b, map[string]interface{}{"planned_start_date": "01/02/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/tasks", map[string]interface{}{"custom_name": "Trenching"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, w).ErrorCode)

	w = s.do(t, http.MethodPost, base+"/tasks", map[string]interface{}{"custom_name": "<script>x</script>", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/projects/prj.1/schedule", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRoutes_DeleteAndHistory 测试删除任务、删除依赖与状态历史
func TestRoutes_DeleteAndHistory(t *testing.T) {
	s := setupServer(t, nil)

	a := s.createTask(t, map[string]interface{}{"custom_name": "A"})
	b := s.createTask(t, map[string]interface{}{"custom_name": "B"})
	w := s.do(t, http.MethodPost, base+"/dependencies", map[string]interface{}{"predecessor_task_id": a, "successor_task_id": b})
	require.Equal(t, http.StatusCreated, w.Code)
	depID := data(t, w)["dependency"].(map[string]interface{})["id"].(string)

	w = s.do(t, http.MethodDelete, base+"/dependencies/"+depID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, base+"/dependencies/"+depID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, base+"/tasks/"+a+"/status", map[string]interface{}{"status": "in_progress", "progress_percent": 30})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, base+"/tasks/"+a+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Data []service.StatusHistoryView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, 30, history.Data[0].ProgressAfter)
	assert.Equal(t, "u-1", history.Data[0].Operator)

	w = s.do(t, http.MethodDelete, base+"/tasks/"+a, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, base+"/tasks/"+a, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRoutes_Tenant 测试租户解析
func TestRoutes_Tenant(t *testing.T) {
	s := setupServer(t, func(cfg *config.Config) {
		cfg.Auth.AllowHeaderTenant = false
		cfg.Auth.JWTSecret = "secret"
	})

	req := httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Header.Set(auth.HeaderOrganizationID, "org-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.NewTokenValidator("secret", "").IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRoutes_Middleware 测试请求 ID、安全头、CORS 预检与健康检查
func TestRoutes_Middleware(t *testing.T) {
	s := setupServer(t, func(cfg *config.Config) {
		cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	})

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(api.HeaderRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodOptions, base+"/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set(api.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-42", rec.Header().Get(api.HeaderRequestID))

	req = httptest.NewRequest(http.MethodOptions, base+"/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_requests_total")
}

// TestRoutes_RateLimit 测试按组织限流
func TestRoutes_RateLimit(t *testing.T) {
	s := setupServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RPS = 0.001
		cfg.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, base+"/schedule", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, base+"/schedule", nil).Code)
	w := s.do(t, http.MethodGet, base+"/schedule", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其他组织不受影响
	req := httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Header.Set(auth.HeaderOrganizationID, "org-2")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRoutes_Statistics 测试项目统计
func TestRoutes_Statistics(t *testing.T) {
	s := setupServer(t, nil)

	s.createTask(t, map[string]interface{}{"custom_name": "A", "planned_start_date": "2024-03-01", "duration_days": 4})
	s.createTask(t, map[string]interface{}{"custom_name": "B"})

	w := s.do(t, http.MethodGet, base+"/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := data(t, w)
	assert.Equal(t, float64(2), stats["total_tasks"])
	assert.Equal(t, float64(1), stats["unscheduled_tasks"])
	assert.Equal(t, "2024-03-01", stats["planned_start"])
	assert.Equal(t, "2024-03-05", stats["planned_end"])
	assert.Equal(t, float64(2), stats["by_status"].(map[string]interface{})["pending"])
}

// TestRoutes_APIVersion 测试版本头
func TestRoutes_APIVersion(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.CurrentAPIVersion, w.Header().Get(api.HeaderAPIVersion))

	req := httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Header.Set(auth.HeaderOrganizationID, "org-1")
	req.Header.Set(api.HeaderAPIVersion, "v9")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestRoutes_ForceHTTPS 测试 HTTPS 重定向
func TestRoutes_ForceHTTPS(t *testing.T) {
	s := setupServer(t, func(cfg *config.Config) {
		cfg.Server.ForceHTTPS = true
	})

	req := httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Host = "schedule.example.com"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://schedule.example.com"+base+"/schedule", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, base+"/schedule", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set(auth.HeaderOrganizationID, "org-1")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
}
