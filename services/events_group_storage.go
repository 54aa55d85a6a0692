package services

import (
	"strconv"
	"sync"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// EventsGroupStorage 单个赛事订阅的实时对象图缓存（赛事 → 市场 → 结果）。
// 每次完整赛事转储到达时整体重建市场/结果单元；
// 各单元带独立的发布器，订阅粒度到单个市场或结果。
// 与 EntityStore 不同，这里的市场/结果发布器只在 StoreEvent 时创建：
// 订阅当前对象图之外的 ID 属于调用方错误，返回 nil 而不是等待未来数据。
type EventsGroupStorage struct {
	mu    sync.RWMutex
	event *models.Event

	eventPub    *Publisher[*models.Event]
	markets     map[string]*models.Market
	marketPubs  map[string]*Publisher[*models.Market]
	outcomes    map[string]*models.Outcome
	outcomePubs map[string]*Publisher[*models.Outcome]
}

// NewEventsGroupStorage 创建空的赛事组存储
func NewEventsGroupStorage() *EventsGroupStorage {
	return &EventsGroupStorage{
		eventPub:    NewPublisher[*models.Event](nil),
		markets:     make(map[string]*models.Market),
		marketPubs:  make(map[string]*Publisher[*models.Market]),
		outcomes:    make(map[string]*models.Outcome),
		outcomePubs: make(map[string]*Publisher[*models.Outcome]),
	}
}

// StoreEvent 整体替换：丢弃现有市场/结果单元，
// 沿 event.Markets[*].Outcomes[*] 重建全部单元，然后发布新赛事。
// 替换对读者是原子的，不会观察到新旧单元混杂的中间状态
func (s *EventsGroupStorage) StoreEvent(event *models.Event) {
	if event == nil {
		logger.Printf("[EventsGroupStorage] Ignoring nil event")
		return
	}

	s.mu.Lock()
	s.event = event.Clone()
	s.markets = make(map[string]*models.Market)
	s.marketPubs = make(map[string]*Publisher[*models.Market])
	s.outcomes = make(map[string]*models.Outcome)
	s.outcomePubs = make(map[string]*Publisher[*models.Outcome])

	for i := range s.event.Markets {
		market := &s.event.Markets[i]
		s.markets[market.ID] = market
		s.marketPubs[market.ID] = NewPublisher(market.Clone())

		for j := range market.Outcomes {
			outcome := &market.Outcomes[j]
			s.outcomes[outcome.ID] = outcome
			s.outcomePubs[outcome.ID] = NewPublisher(outcome.Clone())
		}
	}
	snapshot := s.event.Clone()
	s.mu.Unlock()

	s.eventPub.Publish(snapshot)
}

// Reset 清空赛事和全部单元（重连重订阅前调用）
func (s *EventsGroupStorage) Reset() {
	s.mu.Lock()
	s.event = nil
	s.markets = make(map[string]*models.Market)
	s.marketPubs = make(map[string]*Publisher[*models.Market])
	s.outcomes = make(map[string]*models.Outcome)
	s.outcomePubs = make(map[string]*Publisher[*models.Outcome])
	s.mu.Unlock()

	s.eventPub.Publish(nil)
}

// StoredEvent 当前赛事快照，未存储时为 nil
func (s *EventsGroupStorage) StoredEvent() *models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.event.Clone()
}

// UpdateOutcomeOdd 更新结果赔率。
// 分子/分母字符串解析失败时回退到该分量的当前值（不丢弃整次更新，
// 推送载荷可能只带一个分量或带非法值）；合成的新赔率与当前完全相同时
// 不发通知
func (s *EventsGroupStorage) UpdateOutcomeOdd(id, newNumerator, newDenominator string) {
	s.mu.Lock()
	outcome, ok := s.outcomes[id]
	if !ok {
		s.mu.Unlock()
		logger.Printf("[EventsGroupStorage] Odd update for untracked outcome: %s", id)
		return
	}

	current := outcome.Odd
	if current == nil {
		current = &models.Odd{}
	}

	numerator := current.Numerator
	if parsed, err := strconv.Atoi(newNumerator); err == nil {
		numerator = parsed
	}
	denominator := current.Denominator
	if parsed, err := strconv.Atoi(newDenominator); err == nil {
		denominator = parsed
	}

	if numerator == current.Numerator && denominator == current.Denominator {
		s.mu.Unlock()
		return
	}

	outcome.Odd = &models.Odd{Numerator: numerator, Denominator: denominator}
	snapshot := outcome.Clone()
	pub := s.outcomePubs[id]
	s.mu.Unlock()

	pub.Publish(snapshot)
}

// UpdateOutcomeTradability 更新结果可交易状态，重复值不抑制
func (s *EventsGroupStorage) UpdateOutcomeTradability(id string, isTradable bool) {
	s.mu.Lock()
	outcome, ok := s.outcomes[id]
	if !ok {
		s.mu.Unlock()
		logger.Printf("[EventsGroupStorage] Tradability update for untracked outcome: %s", id)
		return
	}
	outcome.IsTradable = isTradable
	snapshot := outcome.Clone()
	pub := s.outcomePubs[id]
	s.mu.Unlock()

	pub.Publish(snapshot)
}

// UpdateMarketTradability 更新市场可交易状态，重复值不抑制
func (s *EventsGroupStorage) UpdateMarketTradability(id string, isTradable bool) {
	s.mu.Lock()
	market, ok := s.markets[id]
	if !ok {
		s.mu.Unlock()
		logger.Printf("[EventsGroupStorage] Tradability update for untracked market: %s", id)
		return
	}
	market.IsTradable = isTradable
	snapshot := market.Clone()
	pub := s.marketPubs[id]
	s.mu.Unlock()

	pub.Publish(snapshot)
}

// UpdateEventStatus 更新赛事状态并重新发布赛事
func (s *EventsGroupStorage) UpdateEventStatus(newStatus string) {
	s.mutateEvent(func(event *models.Event) {
		event.Status = newStatus
	})
}

// UpdateEventTime 更新比赛时间并重新发布赛事
func (s *EventsGroupStorage) UpdateEventTime(newTime string) {
	s.mutateEvent(func(event *models.Event) {
		event.MatchTime = newTime
	})
}

// UpdateEventScore 更新比分。nil 分量保留现有值，不清零
func (s *EventsGroupStorage) UpdateEventScore(newHomeScore, newAwayScore *int) {
	s.mutateEvent(func(event *models.Event) {
		if newHomeScore != nil {
			event.HomeScore = *newHomeScore
		}
		if newAwayScore != nil {
			event.AwayScore = *newAwayScore
		}
	})
}

// UpdateEventDetailedScore 按分段键写入分段比分；
// 全场键额外镜像到顶层主客比分字段（双写）
func (s *EventsGroupStorage) UpdateEventDetailedScore(detailedScore models.DetailedScore) {
	s.mutateEvent(func(event *models.Event) {
		if event.DetailedScores == nil {
			event.DetailedScores = make(map[string]models.DetailedScore)
		}
		event.DetailedScores[detailedScore.Key] = detailedScore

		if detailedScore.Key == models.ScoreKeyFullMatch {
			event.HomeScore = detailedScore.HomeScore
			event.AwayScore = detailedScore.AwayScore
		}
	})
}

// mutateEvent 在锁内修改赛事并在锁外发布快照
func (s *EventsGroupStorage) mutateEvent(mutate func(*models.Event)) {
	s.mu.Lock()
	if s.event == nil {
		s.mu.Unlock()
		logger.Printf("[EventsGroupStorage] Event update before first snapshot, ignored")
		return
	}
	mutate(s.event)
	snapshot := s.event.Clone()
	s.mu.Unlock()

	s.eventPub.Publish(snapshot)
}

// SubscribeToEventLiveDataUpdates 订阅赛事级更新（比分/时间/状态/整体替换）
func (s *EventsGroupStorage) SubscribeToEventLiveDataUpdates() *ValueSubscription[*models.Event] {
	return s.eventPub.Subscribe()
}

// SubscribeToEventMarketUpdates 订阅单个市场的更新。
// ID 不在当前对象图中时返回 nil
func (s *EventsGroupStorage) SubscribeToEventMarketUpdates(id string) *ValueSubscription[*models.Market] {
	s.mu.RLock()
	pub := s.marketPubs[id]
	s.mu.RUnlock()

	if pub == nil {
		return nil
	}
	return pub.Subscribe()
}

// SubscribeToEventOutcomeUpdates 订阅单个结果的更新。
// ID 不在当前对象图中时返回 nil
func (s *EventsGroupStorage) SubscribeToEventOutcomeUpdates(id string) *ValueSubscription[*models.Outcome] {
	s.mu.RLock()
	pub := s.outcomePubs[id]
	s.mu.RUnlock()

	if pub == nil {
		return nil
	}
	return pub.Subscribe()
}

// ContainsEvent 是否已存储指定赛事
func (s *EventsGroupStorage) ContainsEvent(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.event != nil && s.event.ID == id
}

// ContainsMarket 当前对象图是否包含指定市场
func (s *EventsGroupStorage) ContainsMarket(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.markets[id]
	return ok
}

// ContainsOutcome 当前对象图是否包含指定结果
func (s *EventsGroupStorage) ContainsOutcome(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outcomes[id]
	return ok
}
