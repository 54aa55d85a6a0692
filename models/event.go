package models

// ScoreKeyFullMatch 全场比分的分段比分键。
// 写入该键的分段比分会同时镜像到事件顶层的主客比分字段。
const ScoreKeyFullMatch = "FULL_MATCH"

// DetailedScore 分段比分（上半场、加时、点球等）
type DetailedScore struct {
	Key       string `json:"key"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

// Event 单个赛事的完整对象图（赛事 → 市场 → 结果）
type Event struct {
	ID             string                   `json:"id"`
	SportID        string                   `json:"sportId"`
	Name           string                   `json:"name"`
	Status         string                   `json:"status"`
	MatchTime      string                   `json:"matchTime"`
	HomeScore      int                      `json:"homeScore"`
	AwayScore      int                      `json:"awayScore"`
	DetailedScores map[string]DetailedScore `json:"detailedScores,omitempty"`
	Markets        []Market                 `json:"markets,omitempty"`
}

// Clone 深拷贝赛事对象图，发布给订阅者的快照与存储内部状态互不影响
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	cloned := *e
	if e.DetailedScores != nil {
		cloned.DetailedScores = make(map[string]DetailedScore, len(e.DetailedScores))
		for k, v := range e.DetailedScores {
			cloned.DetailedScores[k] = v
		}
	}
	if e.Markets != nil {
		cloned.Markets = make([]Market, len(e.Markets))
		for i := range e.Markets {
			cloned.Markets[i] = *e.Markets[i].Clone()
		}
	}
	return &cloned
}

// Clone 深拷贝市场及其结果
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	cloned := *m
	if m.Outcomes != nil {
		cloned.Outcomes = make([]Outcome, len(m.Outcomes))
		for i := range m.Outcomes {
			cloned.Outcomes[i] = *m.Outcomes[i].Clone()
		}
	}
	return &cloned
}

// Clone 深拷贝结果
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	cloned := *o
	if o.Odd != nil {
		odd := *o.Odd
		cloned.Odd = &odd
	}
	return &cloned
}
