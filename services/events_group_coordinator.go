package services

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// 订阅启动的两类粗粒度错误，调用方不需要更细的分类
var (
	// ErrResourceUnavailableOrDeleted 探测阶段失败：资源不存在或已删除
	ErrResourceUnavailableOrDeleted = errors.New("events group resource unavailable or deleted")

	// ErrOnSubscribe 订阅阶段失败：非 2xx、网络错误或响应缺少确认标记
	ErrOnSubscribe = errors.New("events group subscribe failed")
)

// 后端响应体中的标记子串
const (
	markerContentNotFound = "CONTENT_NOT_FOUND"
	markerVersion         = "version"
)

// 组发布器的内容状态
const (
	ContentStateConnected     = "connected"
	ContentStateContentUpdate = "content_update"
	ContentStateDisconnected  = "disconnected"
)

// SubscribableContent 组发布器的一次推送
type SubscribableContent struct {
	State        string
	Subscription *Subscription
	Event        *models.Event
	Err          error
}

// Subscription 一次已确认的后端订阅。
// 协调器是唯一属主，调用方通过协调器的 Unsubscribe 释放
type Subscription struct {
	ID           string
	Identifier   models.ContentIdentifier
	SessionToken string
}

// EventsGroupCoordinator 管理单个赛事组的订阅生命周期，
// 从两条独立的推送通道（结构性内容更新、实时比分）驱动存储变更，
// 并通过组发布器向视图层暴露合并后的内容流
type EventsGroupCoordinator struct {
	identifier models.ContentIdentifier
	api        *FeedAPIClient
	storage    *EventsGroupStorage
	groupPub   *Publisher[SubscribableContent]

	mu           sync.Mutex
	subscription *Subscription
	sessionToken string
}

// NewEventsGroupCoordinator 创建协调器（未订阅状态）
func NewEventsGroupCoordinator(identifier models.ContentIdentifier, api *FeedAPIClient, sessionToken string) *EventsGroupCoordinator {
	return &EventsGroupCoordinator{
		identifier:   identifier,
		api:          api,
		storage:      NewEventsGroupStorage(),
		groupPub:     NewPublisher(SubscribableContent{State: ContentStateDisconnected}),
		sessionToken: sessionToken,
	}
}

// Identifier 返回该协调器负责的内容标识
func (c *EventsGroupCoordinator) Identifier() models.ContentIdentifier {
	return c.identifier
}

// Storage 返回该协调器拥有的赛事组存储
func (c *EventsGroupCoordinator) Storage() *EventsGroupStorage {
	return c.storage
}

// Start 启动订阅：先探测赛事组可用性，再发起订阅。
// 探测响应体包含资源不存在标记时整个启动失败，不会发出订阅请求
func (c *EventsGroupCoordinator) Start() error {
	body, err := c.api.CheckEventDetails(c.identifier.EventGroupID)
	if strings.Contains(body, markerContentNotFound) {
		logger.Printf("[EventsGroup] Resource gone for group %s", c.identifier.EventGroupID)
		c.fail(ErrResourceUnavailableOrDeleted)
		return ErrResourceUnavailableOrDeleted
	}
	if err != nil {
		logger.Errorf("[EventsGroup] Probe failed for group %s: %v", c.identifier.EventGroupID, err)
		c.fail(ErrResourceUnavailableOrDeleted)
		return ErrResourceUnavailableOrDeleted
	}

	if err := c.subscribe(); err != nil {
		c.fail(err)
		return err
	}

	logger.Printf("[EventsGroup] ✅ Subscribed to group %s", c.identifier.EventGroupID)
	return nil
}

// subscribe 发起订阅请求，响应体包含版本标记视为确认
func (c *EventsGroupCoordinator) subscribe() error {
	c.mu.Lock()
	token := c.sessionToken
	c.mu.Unlock()

	body, err := c.api.Subscribe(c.identifier.EventGroupID, token)
	if err != nil {
		logger.Errorf("[EventsGroup] Subscribe failed for group %s: %v", c.identifier.EventGroupID, err)
		return ErrOnSubscribe
	}
	if !strings.Contains(body, markerVersion) {
		logger.Errorf("[EventsGroup] Subscribe response missing version marker for group %s", c.identifier.EventGroupID)
		return ErrOnSubscribe
	}

	subscription := &Subscription{
		ID:           uuid.NewString(),
		Identifier:   c.identifier,
		SessionToken: token,
	}

	c.mu.Lock()
	c.subscription = subscription
	c.mu.Unlock()

	c.groupPub.Publish(SubscribableContent{
		State:        ContentStateConnected,
		Subscription: subscription,
	})
	return nil
}

// fail 通过组发布器向视图层暴露启动失败
func (c *EventsGroupCoordinator) fail(err error) {
	c.groupPub.Publish(SubscribableContent{
		State: ContentStateDisconnected,
		Err:   err,
	})
}

// Reconnect 会话令牌轮换：存储原地重置并在新令牌下重新订阅。
// 从调用方视角协调器保持已订阅状态，不经过未订阅状态
func (c *EventsGroupCoordinator) Reconnect(newSessionToken string) error {
	c.mu.Lock()
	c.sessionToken = newSessionToken
	c.mu.Unlock()

	logger.Printf("[EventsGroup] Reconnecting group %s under new session token", c.identifier.EventGroupID)
	c.storage.Reset()

	if err := c.subscribe(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// Unsubscribe 拆除订阅。尽力而为：退订请求结果只记日志，不重试
func (c *EventsGroupCoordinator) Unsubscribe() {
	c.mu.Lock()
	subscription := c.subscription
	c.subscription = nil
	c.mu.Unlock()

	if subscription == nil {
		return
	}

	go func() {
		if _, err := c.api.Unsubscribe(subscription.Identifier.EventGroupID, subscription.SessionToken); err != nil {
			logger.Printf("[EventsGroup] Unsubscribe failed for group %s: %v", subscription.Identifier.EventGroupID, err)
		} else {
			logger.Printf("[EventsGroup] Unsubscribed from group %s", subscription.Identifier.EventGroupID)
		}
	}()

	c.groupPub.Publish(SubscribableContent{State: ContentStateDisconnected})
}

// EventsGroupUpdates 订阅组内容流（connected / content_update / disconnected）
func (c *EventsGroupCoordinator) EventsGroupUpdates() *ValueSubscription[SubscribableContent] {
	return c.groupPub.Subscribe()
}

// SubscribeToEventLiveDataUpdates 订阅赛事级更新
func (c *EventsGroupCoordinator) SubscribeToEventLiveDataUpdates() *ValueSubscription[*models.Event] {
	return c.storage.SubscribeToEventLiveDataUpdates()
}

// SubscribeToEventMarketUpdates 订阅单个市场的更新
func (c *EventsGroupCoordinator) SubscribeToEventMarketUpdates(id string) *ValueSubscription[*models.Market] {
	return c.storage.SubscribeToEventMarketUpdates(id)
}

// SubscribeToEventOutcomeUpdates 订阅单个结果的更新
func (c *EventsGroupCoordinator) SubscribeToEventOutcomeUpdates(id string) *ValueSubscription[*models.Outcome] {
	return c.storage.SubscribeToEventOutcomeUpdates(id)
}

// HandleContentUpdate 处理一条结构性推送更新。
// 推送通道是广播的，其他赛事组的更新直接忽略
func (c *EventsGroupCoordinator) HandleContentUpdate(update models.ContentUpdate) {
	if update.Identifier != c.identifier {
		logger.Debugf("[EventsGroup] Ignoring update for foreign identifier %+v", update.Identifier)
		return
	}

	switch update.Kind {
	case models.UpdateKindEventSnapshot:
		if update.Event == nil {
			logger.Printf("[EventsGroup] Snapshot update without event, ignored")
			return
		}
		c.storage.StoreEvent(update.Event)

	case models.UpdateKindMarketAdded:
		if update.Market == nil {
			logger.Printf("[EventsGroup] Market added update without market, ignored")
			return
		}
		c.addMarket(update.Market)

	case models.UpdateKindMarketRemoved:
		c.removeMarket(update.MarketID)

	case models.UpdateKindMarketTradability:
		if update.IsTradable == nil {
			return
		}
		c.storage.UpdateMarketTradability(update.MarketID, *update.IsTradable)

	case models.UpdateKindOutcomeOdds:
		c.storage.UpdateOutcomeOdd(update.OutcomeID, update.OddsNumerator, update.OddsDenominator)

	case models.UpdateKindOutcomeTradability:
		if update.IsTradable == nil {
			return
		}
		c.storage.UpdateOutcomeTradability(update.OutcomeID, *update.IsTradable)

	case models.UpdateKindEventStatus:
		c.storage.UpdateEventStatus(update.Status)

	case models.UpdateKindEventTime:
		c.storage.UpdateEventTime(update.MatchTime)

	case models.UpdateKindEventScore:
		c.storage.UpdateEventScore(update.HomeScore, update.AwayScore)

	case models.UpdateKindEventDetailedScore:
		if update.DetailedScore == nil {
			return
		}
		c.storage.UpdateEventDetailedScore(*update.DetailedScore)

	default:
		logger.Printf("[EventsGroup] Unknown content update kind: %s", update.Kind)
		return
	}

	c.publishContent()
}

// HandleLiveData 处理一条实时比分推送：比分/时间/状态一次性应用，
// 然后把整个存储的赛事作为内容更新重新发布
func (c *EventsGroupCoordinator) HandleLiveData(envelope models.LiveDataEnvelope) {
	if envelope.Identifier != c.identifier {
		logger.Debugf("[EventsGroup] Ignoring live data for foreign identifier %+v", envelope.Identifier)
		return
	}

	if envelope.Status != "" {
		c.storage.UpdateEventStatus(envelope.Status)
	}
	if envelope.MatchTime != "" {
		c.storage.UpdateEventTime(envelope.MatchTime)
	}
	c.storage.UpdateEventScore(envelope.HomeScore, envelope.AwayScore)

	c.publishContent()
}

// publishContent 把当前存储的赛事作为内容更新发布到组发布器
func (c *EventsGroupCoordinator) publishContent() {
	c.groupPub.Publish(SubscribableContent{
		State: ContentStateContentUpdate,
		Event: c.storage.StoredEvent(),
	})
}

// addMarket 结构性新增市场：在现有对象图上追加后整体重建
func (c *EventsGroupCoordinator) addMarket(market *models.Market) {
	event := c.storage.StoredEvent()
	if event == nil {
		logger.Printf("[EventsGroup] Market added before event snapshot, ignored")
		return
	}
	if c.storage.ContainsMarket(market.ID) {
		logger.Debugf("[EventsGroup] Market %s already tracked", market.ID)
		return
	}
	event.Markets = append(event.Markets, *market.Clone())
	c.storage.StoreEvent(event)
}

// removeMarket 结构性移除市场：过滤后整体重建
func (c *EventsGroupCoordinator) removeMarket(marketID string) {
	event := c.storage.StoredEvent()
	if event == nil {
		return
	}
	filtered := event.Markets[:0]
	for i := range event.Markets {
		if event.Markets[i].ID != marketID {
			filtered = append(filtered, event.Markets[i])
		}
	}
	event.Markets = filtered
	c.storage.StoreEvent(event)
}
