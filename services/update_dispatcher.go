package services

import (
	"sync"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// UpdateDispatcher 把广播推送路由给对应内容标识的协调器。
// 推送通道是共享的，没有匹配协调器的更新静默丢弃
type UpdateDispatcher struct {
	mu           sync.RWMutex
	coordinators map[models.ContentIdentifier]*EventsGroupCoordinator
	sessionToken string
}

// NewUpdateDispatcher 创建更新分发器
func NewUpdateDispatcher(sessionToken string) *UpdateDispatcher {
	return &UpdateDispatcher{
		coordinators: make(map[models.ContentIdentifier]*EventsGroupCoordinator),
		sessionToken: sessionToken,
	}
}

// CurrentSessionToken 当前会话令牌（新开协调器使用）
func (d *UpdateDispatcher) CurrentSessionToken() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessionToken
}

// Coordinator 按内容标识查找已注册的协调器，未注册时返回 nil
func (d *UpdateDispatcher) Coordinator(identifier models.ContentIdentifier) *EventsGroupCoordinator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.coordinators[identifier]
}

// Register 注册协调器。同一标识重复注册时后者覆盖前者
func (d *UpdateDispatcher) Register(coordinator *EventsGroupCoordinator) {
	d.mu.Lock()
	d.coordinators[coordinator.Identifier()] = coordinator
	d.mu.Unlock()

	logger.Printf("[Dispatcher] Registered coordinator for %+v", coordinator.Identifier())
}

// Unregister 注销协调器
func (d *UpdateDispatcher) Unregister(identifier models.ContentIdentifier) {
	d.mu.Lock()
	delete(d.coordinators, identifier)
	d.mu.Unlock()

	logger.Printf("[Dispatcher] Unregistered coordinator for %+v", identifier)
}

// DispatchContentUpdate 路由一条结构性内容更新
func (d *UpdateDispatcher) DispatchContentUpdate(update models.ContentUpdate) {
	d.mu.RLock()
	coordinator := d.coordinators[update.Identifier]
	d.mu.RUnlock()

	if coordinator == nil {
		logger.Debugf("[Dispatcher] No coordinator for %+v, update dropped", update.Identifier)
		return
	}
	coordinator.HandleContentUpdate(update)
}

// DispatchLiveData 路由一条实时比分推送
func (d *UpdateDispatcher) DispatchLiveData(envelope models.LiveDataEnvelope) {
	d.mu.RLock()
	coordinator := d.coordinators[envelope.Identifier]
	d.mu.RUnlock()

	if coordinator == nil {
		logger.Debugf("[Dispatcher] No coordinator for %+v, live data dropped", envelope.Identifier)
		return
	}
	coordinator.HandleLiveData(envelope)
}

// ReconnectAll 会话令牌轮换：所有已注册协调器在新令牌下重连
func (d *UpdateDispatcher) ReconnectAll(newSessionToken string) {
	d.mu.Lock()
	d.sessionToken = newSessionToken
	coordinators := make([]*EventsGroupCoordinator, 0, len(d.coordinators))
	for _, coordinator := range d.coordinators {
		coordinators = append(coordinators, coordinator)
	}
	d.mu.Unlock()

	logger.Printf("[Dispatcher] Session token rotated, reconnecting %d coordinators", len(coordinators))
	for _, coordinator := range coordinators {
		if err := coordinator.Reconnect(newSessionToken); err != nil {
			logger.Errorf("[Dispatcher] Reconnect failed for %+v: %v", coordinator.Identifier(), err)
		}
	}
}
