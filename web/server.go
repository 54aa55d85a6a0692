package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"oddsfeed-service/config"
	"oddsfeed-service/logger"
	"oddsfeed-service/services"
)

// Server 面向视图层的 HTTP/WebSocket 服务
type Server struct {
	config     *config.Config
	store      *services.EntityStore
	archive    *services.MessageArchive // nil 时归档接口不可用
	groups     *GroupController
	hub        *Hub
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer 创建服务器
func NewServer(cfg *config.Config, store *services.EntityStore, archive *services.MessageArchive, groups *GroupController, hub *Hub) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		archive: archive,
		groups:  groups,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源（生产环境需要限制）
			},
		},
	}
}

// Start 启动 HTTP 服务
func (s *Server) Start() error {
	router := mux.NewRouter()

	// API 路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/entities/{type}", s.handleGetEntities).Methods("GET")
	api.HandleFunc("/entities/{type}/{id}", s.handleGetEntity).Methods("GET")
	api.HandleFunc("/messages", s.handleGetMessages).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// 赛事组订阅路由
	if s.groups != nil {
		s.groups.RegisterRoutes(api)
	}

	// WebSocket 路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// CORS 配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Stop 关闭 HTTP 服务
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleGetEntities 按类型获取实体列表（首见顺序）
func (s *Server) handleGetEntities(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rawType := vars["type"]

	entities := s.store.GetAllInOrder(rawType)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"type":     rawType,
		"count":    len(entities),
		"entities": entities,
	})
}

// handleGetEntity 点查单个实体
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rawType := vars["type"]
	id := vars["id"]

	entity := s.store.Get(rawType, id)
	if entity == nil {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"type":   rawType,
		"id":     id,
		"entity": entity,
	})
}

// handleGetMessages 查询归档消息
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}

	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	channel := query.Get("channel")

	messages, err := s.archive.GetMessages(limit, offset, channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": messages,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleGetStats 归档统计
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}

	stats, err := s.archive.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleWebSocket WebSocket 连接处理
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(s.hub, conn, s.store)
	s.hub.register <- client

	// 发送欢迎消息
	welcome := &WSMessage{
		Type: "connected",
		Data: map[string]interface{}{
			"message": "Connected to oddsfeed WebSocket",
			"time":    time.Now().Unix(),
		},
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}

	go client.writePump()
	go client.readPump()
}
