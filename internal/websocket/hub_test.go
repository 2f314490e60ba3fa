package websocket_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/mautops/schedule-gin/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(hub *websocket.Hub, id, org, project string) *websocket.Client {
	return &websocket.Client{
		ID:             id,
		OrganizationID: org,
		ProjectID:      project,
		Hub:            hub,
		Send:           make(chan []byte, 256),
	}
}

// TestHub_RegisterUnregister 测试 Hub 注册与注销客户端
func TestHub_RegisterUnregister(t *testing.T) {
	hub := websocket.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := newClient(hub, "client-001", "org-1", "prj-1")
	hub.Register <- client
	assert.Eventually(t, func() bool { return hub.HasClient(client.ID) }, time.Second, 10*time.Millisecond)

	hub.Unregister <- client
	assert.Eventually(t, func() bool { return !hub.HasClient(client.ID) }, time.Second, 10*time.Millisecond)

	_, ok := <-client.Send
	assert.False(t, ok)
}

// TestHub_NotifyProject 测试只推送给同一项目的客户端
func TestHub_NotifyProject(t *testing.T) {
	hub := websocket.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	same := newClient(hub, "c1", "org-1", "prj-1")
	otherProject := newClient(hub, "c2", "org-1", "prj-2")
	otherOrg := newClient(hub, "c3", "org-2", "prj-1")
	for _, c := range []*websocket.Client{same, otherProject, otherOrg} {
		hub.Register <- c
	}
	require.Eventually(t, func() bool { return hub.GetClientCount() == 3 }, time.Second, 10*time.Millisecond)

	hub.NotifyProject("org-1", "prj-1", map[string]string{"type": "task.updated"})

	select {
	case msg := <-same.Send:
		assert.JSONEq(t, `{"type":"task.updated"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected message")
	}
	assert.Empty(t, otherProject.Send)
	assert.Empty(t, otherOrg.Send)
}

// TestHub_SlowClientDropped 测试缓冲区满的客户端被断开
func TestHub_SlowClientDropped(t *testing.T) {
	hub := websocket.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	slow := &websocket.Client{ID: "slow", OrganizationID: "org-1", ProjectID: "prj-1", Hub: hub, Send: make(chan []byte)}
	hub.Register <- slow
	require.Eventually(t, func() bool { return hub.HasClient("slow") }, time.Second, 10*time.Millisecond)

	hub.BroadcastToProject("org-1", "prj-1", []byte(`{}`))
	assert.False(t, hub.HasClient("slow"))
}

// TestWebSocketHandler_ReceivesEvents 测试通过 WebSocket 订阅项目事件
func TestWebSocketHandler_ReceivesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	validator := auth.NewTokenValidator("secret", "")
	router := gin.New()
	router.GET("/ws/projects/:project_id", websocket.WebSocketHandler(hub, validator, false))
	server := httptest.NewServer(router)
	defer server.Close()

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/projects/prj-1"

	_, resp, err := gorillaWS.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	token, err := validator.IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	conn, _, err := gorillaWS.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.NotifyProject("org-1", "prj-1", map[string]interface{}{"type": "dependency.added", "project_id": "prj-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "dependency.added", event["type"])
}

// TestWebSocketHandler_AfterStop 测试 Hub 停止后新连接被立即关闭
func TestWebSocketHandler_AfterStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub(nil)
	go hub.Run()
	hub.Stop()

	validator := auth.NewTokenValidator("secret", "")
	router := gin.New()
	router.GET("/ws/projects/:project_id", websocket.WebSocketHandler(hub, validator, false))
	server := httptest.NewServer(router)
	defer server.Close()

	token, err := validator.IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/projects/prj-1?token=" + token
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection should be closed, got %v", err)
	assert.Zero(t, hub.GetClientCount())
}
