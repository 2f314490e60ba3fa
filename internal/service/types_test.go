package service_test

import (
	"encoding/json"
	"testing"

	"github.com/mautops/schedule-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUpdateTaskRequest_PatchSemantics 测试未出现、null 与具体值三种情况
func TestUpdateTaskRequest_PatchSemantics(t *testing.T) {
	var req service.UpdateTaskRequest
	body := `{"planned_start_date":"2024-03-01","planned_end_date":null,"quantity":"12.5","dates_pinned":false}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.True(t, req.PlannedStartDate.Set)
	require.NotNil(t, req.PlannedStartDate.Value)
	assert.Equal(t, "2024-03-01", fmtDate(req.PlannedStartDate.Value))

	assert.True(t, req.PlannedEndDate.Set)
	assert.Nil(t, req.PlannedEndDate.Value)

	assert.False(t, req.DurationDays.Set)
	assert.False(t, req.CustomName.Set)

	require.NotNil(t, req.Quantity.Value)
	assert.Equal(t, "12.5", req.Quantity.Value.String())

	require.NotNil(t, req.DatesPinned.Value)
	assert.False(t, *req.DatesPinned.Value)
}

// TestDate_JSON 测试日期格式
func TestDate_JSON(t *testing.T) {
	var d service.Date
	assert.Error(t, json.Unmarshal([]byte(`"2024-13-01"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"2024-01-01T10:00:00Z"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20240101`), &d))

	require.NoError(t, json.Unmarshal([]byte(`"2024-02-29"`), &d))
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-02-29"`, string(out))
}
