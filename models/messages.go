package models

import "encoding/json"

// 记录类型
const (
	RecordTypeEntity = "ENTITY"
	RecordTypeChange = "CHANGE"
)

// 变更类型
const (
	ChangeTypeCreate = "CREATE"
	ChangeTypeUpdate = "UPDATE"
	ChangeTypeDelete = "DELETE"
)

// AggregatorResponse 聚合器响应：完整实体转储与增量变更记录的有序列表
type AggregatorResponse struct {
	Records []AggregatorRecord `json:"records"`
}

// AggregatorRecord 响应中的一条记录
type AggregatorRecord struct {
	RecordType string          `json:"recordType"`
	EntityType string          `json:"entityType,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`
	Change     *ChangeRecord   `json:"change,omitempty"`
}

// ChangeRecord 推送流中的一条增量变更。
// UPDATE 记录必须携带 changedProperties，CREATE 记录携带完整实体
type ChangeRecord struct {
	EntityType        string                     `json:"entityType"`
	ID                string                     `json:"id"`
	ChangeType        string                     `json:"changeType"`
	Entity            json.RawMessage            `json:"entity,omitempty"`
	ChangedProperties map[string]json.RawMessage `json:"changedProperties,omitempty"`
}

// ContentIdentifier 订阅内容标识（类型 + 路由）。
// 推送通道是广播的，协调器按该标识过滤属于自己的更新
type ContentIdentifier struct {
	ContentType  string `json:"contentType"`
	EventGroupID string `json:"eventGroupId"`
}

// ContentTypeEventsGroup 单赛事组订阅
const ContentTypeEventsGroup = "EVENTS_GROUP"

// 结构性内容更新类型
const (
	UpdateKindEventSnapshot      = "EVENT_SNAPSHOT"
	UpdateKindMarketAdded        = "MARKET_ADDED"
	UpdateKindMarketRemoved      = "MARKET_REMOVED"
	UpdateKindMarketTradability  = "MARKET_TRADABILITY"
	UpdateKindOutcomeOdds        = "OUTCOME_ODDS"
	UpdateKindOutcomeTradability = "OUTCOME_TRADABILITY"
	UpdateKindEventStatus        = "EVENT_STATUS"
	UpdateKindEventTime          = "EVENT_TIME"
	UpdateKindEventScore         = "EVENT_SCORE"
	UpdateKindEventDetailedScore = "EVENT_DETAILED_SCORE"
)

// ContentUpdate 单赛事组的结构性推送更新
type ContentUpdate struct {
	Identifier      ContentIdentifier `json:"identifier"`
	Kind            string            `json:"kind"`
	Event           *Event            `json:"event,omitempty"`
	Market          *Market           `json:"market,omitempty"`
	MarketID        string            `json:"marketId,omitempty"`
	OutcomeID       string            `json:"outcomeId,omitempty"`
	OddsNumerator   string            `json:"oddsNumerator,omitempty"`
	OddsDenominator string            `json:"oddsDenominator,omitempty"`
	IsTradable      *bool             `json:"isTradable,omitempty"`
	Status          string            `json:"status,omitempty"`
	MatchTime       string            `json:"matchTime,omitempty"`
	HomeScore       *int              `json:"homeScore,omitempty"`
	AwayScore       *int              `json:"awayScore,omitempty"`
	DetailedScore   *DetailedScore    `json:"detailedScore,omitempty"`
}

// LiveDataEnvelope 实时比分推送，比分/时间/状态一次性应用
type LiveDataEnvelope struct {
	Identifier ContentIdentifier `json:"identifier"`
	Status     string            `json:"status,omitempty"`
	MatchTime  string            `json:"matchTime,omitempty"`
	HomeScore  *int              `json:"homeScore,omitempty"`
	AwayScore  *int              `json:"awayScore,omitempty"`
}

// SessionRotation 会话令牌轮换通知
type SessionRotation struct {
	SessionToken string `json:"sessionToken"`
}

// 推送消息通道
const (
	FeedChannelAggregator = "aggregator"
	FeedChannelContent    = "content"
	FeedChannelLiveData   = "livedata"
	FeedChannelSession    = "session"
)

// FeedMessage 消息队列投递的外层信封
type FeedMessage struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}
