package web

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
	"oddsfeed-service/services"
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type       string      `json:"type"`
	EntityType string      `json:"entity_type,omitempty"`
	EntityID   string      `json:"entity_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// wsKey 一个客户端的实体观察键
type wsKey struct {
	entityType string
	entityID   string
}

// Client WebSocket 客户端。
// 客户端通过 subscribe/unsubscribe 消息按（类型，ID）键观察实体缓存，
// 每个观察对应 EntityStore 的一个订阅，变更值推送到客户端
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	store *services.EntityStore
	send  chan []byte

	mu            sync.Mutex
	subscriptions map[wsKey]*services.ValueSubscription[models.Entity]
	closed        bool
}

func newClient(hub *Hub, conn *websocket.Conn, store *services.EntityStore) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		store:         store,
		send:          make(chan []byte, 256),
		subscriptions: make(map[wsKey]*services.ValueSubscription[models.Entity]),
	}
}

// Hub 管理全部 WebSocket 客户端的注册与注销
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.Printf("Client registered. Total clients: %d", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.teardown()
			}
			count := len(h.clients)
			h.mu.Unlock()
			logger.Printf("Client unregistered. Total clients: %d", count)
		}
	}
}

// ClientCount 当前客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// teardown 取消全部实体观察并关闭发送通道
func (c *Client) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = make(map[wsKey]*services.ValueSubscription[models.Entity])
	c.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Cancel()
	}
	close(c.send)
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("WebSocket error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage 处理客户端发送的消息（建立/取消实体观察）
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type       string `json:"type"`
		EntityType string `json:"entity_type"`
		EntityID   string `json:"entity_id"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Errorf("Failed to unmarshal client message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribeEntity(msg.EntityType, msg.EntityID)
	case "unsubscribe":
		c.unsubscribeEntity(msg.EntityType, msg.EntityID)
	default:
		logger.Printf("Unknown client message type: %s", msg.Type)
	}
}

// subscribeEntity 建立一个实体观察并开始向客户端泵送变更
func (c *Client) subscribeEntity(entityType, entityID string) {
	if entityType == "" || entityID == "" {
		return
	}
	key := wsKey{entityType: entityType, entityID: entityID}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.subscriptions[key]; ok {
		c.mu.Unlock()
		return
	}
	subscription := c.store.ObserveEntity(entityType, entityID)
	c.subscriptions[key] = subscription
	c.mu.Unlock()

	logger.Printf("Client subscribed to %s/%s", entityType, entityID)

	go func() {
		for entity := range subscription.Updates() {
			payload := &WSMessage{
				Type:       "entity",
				EntityType: entityType,
				EntityID:   entityID,
				Data:       entity, // nil 表示实体已下线
			}
			data, err := json.Marshal(payload)
			if err != nil {
				logger.Errorf("Failed to marshal entity message: %v", err)
				continue
			}
			if !c.trySend(data) {
				return
			}
		}
	}()
}

// unsubscribeEntity 取消一个实体观察
func (c *Client) unsubscribeEntity(entityType, entityID string) {
	key := wsKey{entityType: entityType, entityID: entityID}

	c.mu.Lock()
	subscription, ok := c.subscriptions[key]
	if ok {
		delete(c.subscriptions, key)
	}
	c.mu.Unlock()

	if ok {
		subscription.Cancel()
		logger.Printf("Client unsubscribed from %s/%s", entityType, entityID)
	}
}

// trySend 发送到客户端通道，客户端已关闭时返回 false
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		// 客户端积压时丢弃本条，保持连接
		return true
	}
}
