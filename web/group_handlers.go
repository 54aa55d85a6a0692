package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"oddsfeed-service/models"
	"oddsfeed-service/services"
)

// GroupController 赛事组订阅的管理接口。
// 视图层通过这里打开/关闭赛事组，协调器生命周期与分发器注册保持一致
type GroupController struct {
	api        *services.FeedAPIClient
	dispatcher *services.UpdateDispatcher
}

// NewGroupController 创建赛事组控制器
func NewGroupController(api *services.FeedAPIClient, dispatcher *services.UpdateDispatcher) *GroupController {
	return &GroupController{api: api, dispatcher: dispatcher}
}

// RegisterRoutes 注册赛事组路由
func (g *GroupController) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/groups/{group_id}/open", g.handleOpenGroup).Methods("POST")
	api.HandleFunc("/groups/{group_id}/close", g.handleCloseGroup).Methods("POST")
	api.HandleFunc("/groups/{group_id}", g.handleGetGroup).Methods("GET")
}

// handleOpenGroup 打开赛事组订阅：创建协调器、启动、注册到分发器
func (g *GroupController) handleOpenGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identifier := models.ContentIdentifier{
		ContentType:  models.ContentTypeEventsGroup,
		EventGroupID: vars["group_id"],
	}

	if g.dispatcher.Coordinator(identifier) != nil {
		http.Error(w, "group already open", http.StatusConflict)
		return
	}

	coordinator := services.NewEventsGroupCoordinator(identifier, g.api, g.dispatcher.CurrentSessionToken())
	if err := coordinator.Start(); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, services.ErrResourceUnavailableOrDeleted) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	g.dispatcher.Register(coordinator)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"group_id": identifier.EventGroupID,
		"status":   "subscribed",
	})
}

// handleCloseGroup 关闭赛事组订阅
func (g *GroupController) handleCloseGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identifier := models.ContentIdentifier{
		ContentType:  models.ContentTypeEventsGroup,
		EventGroupID: vars["group_id"],
	}

	coordinator := g.dispatcher.Coordinator(identifier)
	if coordinator == nil {
		http.Error(w, "group not open", http.StatusNotFound)
		return
	}

	g.dispatcher.Unregister(identifier)
	coordinator.Unsubscribe()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"group_id": identifier.EventGroupID,
		"status":   "unsubscribed",
	})
}

// handleGetGroup 读取当前存储的赛事快照
func (g *GroupController) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identifier := models.ContentIdentifier{
		ContentType:  models.ContentTypeEventsGroup,
		EventGroupID: vars["group_id"],
	}

	coordinator := g.dispatcher.Coordinator(identifier)
	if coordinator == nil {
		http.Error(w, "group not open", http.StatusNotFound)
		return
	}

	event := coordinator.Storage().StoredEvent()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"group_id": identifier.EventGroupID,
		"event":    event,
	})
}
