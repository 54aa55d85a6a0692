package services

import (
	"encoding/json"
	"slices"
	"sync"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// entityKey 实体缓存键（类型 + ID）
type entityKey struct {
	rawType string
	id      string
}

// entityNotification 一次实体变更通知。deleted 为 true 时 entity 为 nil，
// 表示实体已不存在（显式下线信号，而不是停止推送）
type entityNotification struct {
	key     entityKey
	entity  models.Entity
	deleted bool
}

// EntityStore 进程级共享的实体缓存。
// 按（类型，ID）键存储，读并发、写互斥；变更通知走独立的分发协程，
// 与核心映射的锁解耦——Get 可能先于对应通知可见，这是刻意的吞吐取舍，
// 观察者只通过各自的发布器读取状态，不依赖与无关 Get 的先后顺序。
type EntityStore struct {
	mu          sync.RWMutex
	entities    map[string]map[string]models.Entity
	entityOrder map[string][]string
	orderSeen   map[string]map[string]bool

	pubMu      sync.Mutex
	publishers map[entityKey]*Publisher[models.Entity]
	infoViews  map[string]*Publisher[[]models.EventInfo]

	notifyCh chan entityNotification
	done     chan struct{}
}

// NewEntityStore 创建实体缓存并启动通知分发协程。
// 显式构造、显式传递，不使用全局实例。
func NewEntityStore() *EntityStore {
	s := &EntityStore{
		entities:    make(map[string]map[string]models.Entity),
		entityOrder: make(map[string][]string),
		orderSeen:   make(map[string]map[string]bool),
		publishers:  make(map[entityKey]*Publisher[models.Entity]),
		infoViews:   make(map[string]*Publisher[[]models.EventInfo]),
		notifyCh:    make(chan entityNotification, 1024),
		done:        make(chan struct{}),
	}
	go s.dispatchLoop()
	return s
}

// Close 停止通知分发
func (s *EntityStore) Close() {
	close(s.done)
}

// Store 写入或更新单个实体
func (s *EntityStore) Store(entity models.Entity) {
	s.StoreAll([]models.Entity{entity})
}

// StoreAll 批量写入实体，通知按输入顺序逐个发出
func (s *EntityStore) StoreAll(entities []models.Entity) {
	notifications := make([]entityNotification, 0, len(entities))

	s.mu.Lock()
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		rawType := entity.RawType()
		id := entity.EntityID()

		bucket, ok := s.entities[rawType]
		if !ok {
			bucket = make(map[string]models.Entity)
			s.entities[rawType] = bucket
		}
		bucket[id] = entity

		// 首见顺序：仅在顺序表中不存在时追加（删除后重写不再追加）
		seen, ok := s.orderSeen[rawType]
		if !ok {
			seen = make(map[string]bool)
			s.orderSeen[rawType] = seen
		}
		if !seen[id] {
			seen[id] = true
			s.entityOrder[rawType] = append(s.entityOrder[rawType], id)
		}

		notifications = append(notifications, entityNotification{
			key:    entityKey{rawType: rawType, id: id},
			entity: entity,
		})
	}
	s.mu.Unlock()

	s.enqueue(notifications)
}

// Get 点查，不存在时返回 nil
func (s *EntityStore) Get(rawType, id string) models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities[rawType][id]
}

// GetAll 某类型的全部实体快照，顺序不保证
func (s *EntityStore) GetAll(rawType string) []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.entities[rawType]
	result := make([]models.Entity, 0, len(bucket))
	for _, entity := range bucket {
		result = append(result, entity)
	}
	return result
}

// GetAllInOrder 按首次写入顺序返回某类型的全部实体。
// 顺序表中可能残留已删除的 ID，跳过即可
func (s *EntityStore) GetAllInOrder(rawType string) []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.entities[rawType]
	order := s.entityOrder[rawType]
	result := make([]models.Entity, 0, len(order))
	for _, id := range order {
		if entity, ok := bucket[id]; ok {
			result = append(result, entity)
		}
	}
	return result
}

// UpdateEntity 部分更新：序列化现有实体为键值结构，按键覆盖变更字段，
// 再经类型分发表还原为具体类型。实体不存在、类型未知或合并失败时
// 仅记录日志，不产生任何变更和通知
func (s *EntityStore) UpdateEntity(rawType, id string, changedProperties map[string]json.RawMessage) {
	s.mu.Lock()

	existing, ok := s.entities[rawType][id]
	if !ok {
		s.mu.Unlock()
		logger.Printf("[EntityStore] Skipping update for missing entity %s/%s", rawType, id)
		return
	}

	merged, err := mergeEntity(existing, rawType, changedProperties)
	if err != nil {
		s.mu.Unlock()
		logger.Printf("[EntityStore] Skipping update for %s/%s: %v", rawType, id, err)
		return
	}

	s.entities[rawType][id] = merged
	s.mu.Unlock()

	s.enqueue([]entityNotification{{
		key:    entityKey{rawType: rawType, id: id},
		entity: merged,
	}})
}

// DeleteEntity 删除实体并向观察者发出显式的 nil 通知。
// 顺序表不回收该 ID，重新写入时保留原有位次
func (s *EntityStore) DeleteEntity(rawType, id string) {
	s.mu.Lock()
	bucket := s.entities[rawType]
	if _, ok := bucket[id]; !ok {
		s.mu.Unlock()
		logger.Debugf("[EntityStore] Delete for missing entity %s/%s", rawType, id)
		return
	}
	delete(bucket, id)
	s.mu.Unlock()

	s.enqueue([]entityNotification{{
		key:     entityKey{rawType: rawType, id: id},
		deleted: true,
	}})
}

// Clear 丢弃全部实体。已建立的发布器不动，观察者继续等待后续数据
func (s *EntityStore) Clear() {
	s.mu.Lock()
	s.entities = make(map[string]map[string]models.Entity)
	s.entityOrder = make(map[string][]string)
	s.orderSeen = make(map[string]map[string]bool)
	s.mu.Unlock()
}

// ObserveEntity 观察某个（类型，ID）键。
// 订阅者立即收到当前状态（实体或 nil），之后收到该键的每次变更。
// 发布器在首次观察时惰性创建并缓存，同一键的所有观察者共享；
// 最后一个订阅者取消后按引用计数回收
func (s *EntityStore) ObserveEntity(rawType, id string) *ValueSubscription[models.Entity] {
	key := entityKey{rawType: rawType, id: id}

	s.pubMu.Lock()
	pub, ok := s.publishers[key]
	if !ok {
		pub = NewPublisher(s.Get(rawType, id))
		pub.SetOnEmpty(func() {
			s.pubMu.Lock()
			if p, ok := s.publishers[key]; ok && p.SubscriberCount() == 0 {
				delete(s.publishers, key)
			}
			s.pubMu.Unlock()
		})
		s.publishers[key] = pub
	}
	s.pubMu.Unlock()

	return pub.Subscribe()
}

// ObserveMarket 观察市场实体
func (s *EntityStore) ObserveMarket(id string) *ValueSubscription[models.Entity] {
	return s.ObserveEntity(models.TypeMarket, id)
}

// ObserveOutcome 观察结果实体
func (s *EntityStore) ObserveOutcome(id string) *ValueSubscription[models.Entity] {
	return s.ObserveEntity(models.TypeOutcome, id)
}

// ObserveBettingOffer 观察投注报价实体
func (s *EntityStore) ObserveBettingOffer(id string) *ValueSubscription[models.Entity] {
	return s.ObserveEntity(models.TypeBettingOffer, id)
}

// ObserveMatch 观察比赛实体
func (s *EntityStore) ObserveMatch(id string) *ValueSubscription[models.Entity] {
	return s.ObserveEntity(models.TypeMatch, id)
}

// ObserveEventInfo 观察赛事附加信息实体
func (s *EntityStore) ObserveEventInfo(id string) *ValueSubscription[models.Entity] {
	return s.ObserveEntity(models.TypeEventInfo, id)
}

// ObserveEventInfosForEvent 观察按 eventId 过滤的 EVENT_INFO 集合。
// EVENT_INFO 桶每次变化后重算过滤结果，与上次推送相同则抑制重复
func (s *EntityStore) ObserveEventInfosForEvent(eventID string) *ValueSubscription[[]models.EventInfo] {
	s.pubMu.Lock()
	pub, ok := s.infoViews[eventID]
	if !ok {
		pub = NewPublisher(s.eventInfosForEvent(eventID))
		pub.SetOnEmpty(func() {
			s.pubMu.Lock()
			if p, ok := s.infoViews[eventID]; ok && p.SubscriberCount() == 0 {
				delete(s.infoViews, eventID)
			}
			s.pubMu.Unlock()
		})
		s.infoViews[eventID] = pub
	}
	s.pubMu.Unlock()

	return pub.Subscribe()
}

// eventInfosForEvent 按首见顺序过滤 EVENT_INFO 桶
func (s *EntityStore) eventInfosForEvent(eventID string) []models.EventInfo {
	infos := []models.EventInfo{}
	for _, entity := range s.GetAllInOrder(models.TypeEventInfo) {
		if info, ok := entity.(models.EventInfo); ok && info.EventID == eventID {
			infos = append(infos, info)
		}
	}
	return infos
}

// enqueue 将通知放入分发队列，存储关闭后丢弃
func (s *EntityStore) enqueue(notifications []entityNotification) {
	for _, n := range notifications {
		select {
		case s.notifyCh <- n:
		case <-s.done:
			return
		}
	}
}

// dispatchLoop 单协程按入队顺序分发通知
func (s *EntityStore) dispatchLoop() {
	for {
		select {
		case n := <-s.notifyCh:
			s.dispatch(n)
		case <-s.done:
			return
		}
	}
}

// dispatch 通知已有的键级发布器和受影响的派生视图
func (s *EntityStore) dispatch(n entityNotification) {
	s.pubMu.Lock()
	pub := s.publishers[n.key]
	s.pubMu.Unlock()

	if pub != nil {
		if n.deleted {
			pub.Publish(nil)
		} else {
			pub.Publish(n.entity)
		}
	}

	if n.key.rawType == models.TypeEventInfo {
		s.refreshInfoViews()
	}
}

// refreshInfoViews 重算全部派生视图，结果变化才推送
func (s *EntityStore) refreshInfoViews() {
	s.pubMu.Lock()
	views := make(map[string]*Publisher[[]models.EventInfo], len(s.infoViews))
	for eventID, pub := range s.infoViews {
		views[eventID] = pub
	}
	s.pubMu.Unlock()

	for eventID, pub := range views {
		next := s.eventInfosForEvent(eventID)
		if !slices.Equal(pub.Value(), next) {
			pub.Publish(next)
		}
	}
}

// mergeEntity 序列化 → 按键覆盖 → 经分发表还原
func mergeEntity(existing models.Entity, rawType string, changedProperties map[string]json.RawMessage) (models.Entity, error) {
	data, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}

	for key, value := range changedProperties {
		generic[key] = value
	}

	merged, err := json.Marshal(generic)
	if err != nil {
		return nil, err
	}

	return models.DecodeEntity(rawType, merged)
}
