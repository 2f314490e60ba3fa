package websocket

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub 管理所有 WebSocket 连接,按项目分发排程变更
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	done   chan struct{}
	logger logrus.FieldLogger

	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.WithField("component", "websocket"),
	}
}

// Run 运行 Hub,直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有客户端
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// BroadcastToProject 向订阅某个项目的客户端发送消息
func (h *Hub) BroadcastToProject(organizationID, projectID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.OrganizationID == organizationID && client.ProjectID == projectID {
			h.send(client, message)
		}
	}
}

// NotifyProject 推送排程变更事件
func (h *Hub) NotifyProject(organizationID, projectID string, event interface{}) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("failed to encode schedule event")
		return
	}
	h.BroadcastToProject(organizationID, projectID, message)
}

// send 客户端缓冲区已满时断开连接,需持有写锁
func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.logger.WithField("client_id", client.ID).Warn("client too slow, dropping connection")
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
