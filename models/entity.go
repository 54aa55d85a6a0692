package models

import (
	"encoding/json"
	"fmt"
)

// 实体类型标签，与聚合器推送中的 entityType 字段一致
const (
	TypeSport                 = "SPORT"
	TypeMatch                 = "MATCH"
	TypeMarket                = "MARKET"
	TypeOutcome               = "OUTCOME"
	TypeBettingOffer          = "BETTING_OFFER"
	TypeLocation              = "LOCATION"
	TypeEventCategory         = "EVENT_CATEGORY"
	TypeMarketOutcomeRelation = "MARKET_OUTCOME_RELATION"
	TypeMainMarket            = "MAIN_MARKET"
	TypeMarketInfo            = "MARKET_INFO"
	TypeNextMatchesNumber     = "NEXT_MATCHES_NUMBER"
	TypeTournament            = "TOURNAMENT"
	TypeEventInfo             = "EVENT_INFO"
)

// Entity 赔率域实体，通过稳定的字符串 ID 和类型标签标识
type Entity interface {
	EntityID() string
	RawType() string
}

// Sport 体育类型
type Sport struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Sport) EntityID() string { return s.ID }
func (s Sport) RawType() string  { return TypeSport }

// Match 比赛
type Match struct {
	ID           string `json:"id"`
	SportID      string `json:"sportId"`
	Name         string `json:"name"`
	HomeTeamName string `json:"homeTeamName"`
	AwayTeamName string `json:"awayTeamName"`
	StartTime    int64  `json:"startTime"`
	Status       string `json:"status"`
}

func (m Match) EntityID() string { return m.ID }
func (m Match) RawType() string  { return TypeMatch }

// Market 市场。实体缓存和单赛事对象图共用该结构，
// 作为实体存储时 Outcomes 通常为空
type Market struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	Name       string    `json:"name"`
	MarketType string    `json:"marketType"`
	IsTradable bool      `json:"isTradable"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

func (m Market) EntityID() string { return m.ID }
func (m Market) RawType() string  { return TypeMarket }

// Outcome 市场结果
type Outcome struct {
	ID         string `json:"id"`
	MarketID   string `json:"marketId"`
	Name       string `json:"name"`
	Odd        *Odd   `json:"odd,omitempty"`
	IsTradable bool   `json:"isTradable"`
}

func (o Outcome) EntityID() string { return o.ID }
func (o Outcome) RawType() string  { return TypeOutcome }

// Odd 赔率，以分数表示（分子/分母）
type Odd struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// BettingOffer 投注报价
type BettingOffer struct {
	ID        string  `json:"id"`
	OutcomeID string  `json:"outcomeId"`
	Odds      float64 `json:"odds"`
	IsLive    bool    `json:"isLive"`
	Status    string  `json:"status"`
}

func (b BettingOffer) EntityID() string { return b.ID }
func (b BettingOffer) RawType() string  { return TypeBettingOffer }

// Location 地区
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func (l Location) EntityID() string { return l.ID }
func (l Location) RawType() string  { return TypeLocation }

// EventCategory 赛事分类
type EventCategory struct {
	ID      string `json:"id"`
	SportID string `json:"sportId"`
	Name    string `json:"name"`
}

func (c EventCategory) EntityID() string { return c.ID }
func (c EventCategory) RawType() string  { return TypeEventCategory }

// MarketOutcomeRelation 市场与结果的关联
type MarketOutcomeRelation struct {
	ID        string `json:"id"`
	MarketID  string `json:"marketId"`
	OutcomeID string `json:"outcomeId"`
}

func (r MarketOutcomeRelation) EntityID() string { return r.ID }
func (r MarketOutcomeRelation) RawType() string  { return TypeMarketOutcomeRelation }

// MainMarket 赛事主市场
type MainMarket struct {
	ID       string `json:"id"`
	EventID  string `json:"eventId"`
	MarketID string `json:"marketId"`
}

func (m MainMarket) EntityID() string { return m.ID }
func (m MainMarket) RawType() string  { return TypeMainMarket }

// MarketInfo 市场描述信息
type MarketInfo struct {
	ID          string `json:"id"`
	MarketID    string `json:"marketId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m MarketInfo) EntityID() string { return m.ID }
func (m MarketInfo) RawType() string  { return TypeMarketInfo }

// NextMatchesNumber 后续比赛数量
type NextMatchesNumber struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

func (n NextMatchesNumber) EntityID() string { return n.ID }
func (n NextMatchesNumber) RawType() string  { return TypeNextMatchesNumber }

// Tournament 联赛
type Tournament struct {
	ID         string `json:"id"`
	SportID    string `json:"sportId"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

func (t Tournament) EntityID() string { return t.ID }
func (t Tournament) RawType() string  { return TypeTournament }

// EventInfo 赛事附加信息（仅标量字段，可直接比较）
type EventInfo struct {
	ID       string `json:"id"`
	EventID  string `json:"eventId"`
	InfoType string `json:"infoType"`
	Value    string `json:"value"`
}

func (e EventInfo) EntityID() string { return e.ID }
func (e EventInfo) RawType() string  { return TypeEventInfo }

// entityDecoders 类型标签到具体类型的解码分发表
var entityDecoders = map[string]func([]byte) (Entity, error){
	TypeSport: func(b []byte) (Entity, error) {
		var e Sport
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeMatch: func(b []byte) (Entity, error) {
		var e Match
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeMarket: func(b []byte) (Entity, error) {
		var e Market
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeOutcome: func(b []byte) (Entity, error) {
		var e Outcome
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeBettingOffer: func(b []byte) (Entity, error) {
		var e BettingOffer
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeLocation: func(b []byte) (Entity, error) {
		var e Location
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeEventCategory: func(b []byte) (Entity, error) {
		var e EventCategory
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeMarketOutcomeRelation: func(b []byte) (Entity, error) {
		var e MarketOutcomeRelation
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeMainMarket: func(b []byte) (Entity, error) {
		var e MainMarket
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeMarketInfo: func(b []byte) (Entity, error) {
		var e MarketInfo
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeNextMatchesNumber: func(b []byte) (Entity, error) {
		var e NextMatchesNumber
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeTournament: func(b []byte) (Entity, error) {
		var e Tournament
		err := json.Unmarshal(b, &e)
		return e, err
	},
	TypeEventInfo: func(b []byte) (Entity, error) {
		var e EventInfo
		err := json.Unmarshal(b, &e)
		return e, err
	},
}

// DecodeEntity 按类型标签解码实体，未知标签返回错误（调用方记录日志后跳过）
func DecodeEntity(rawType string, data []byte) (Entity, error) {
	decode, ok := entityDecoders[rawType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", rawType)
	}
	return decode(data)
}

// KnownEntityTypes 返回所有已知的实体类型标签
func KnownEntityTypes() []string {
	types := make([]string, 0, len(entityDecoders))
	for t := range entityDecoders {
		types = append(types, t)
	}
	return types
}
