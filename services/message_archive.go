package services

import (
	"database/sql"
	"time"
)

// MessageArchive 推送消息归档。
// 运行时缓存本身是纯内存的，归档只记录进线的原始推送流，
// 用于排查线上数据问题和回放
type MessageArchive struct {
	db *sql.DB
}

// NewMessageArchive 创建消息归档
func NewMessageArchive(db *sql.DB) *MessageArchive {
	return &MessageArchive{db: db}
}

// SaveFeedMessage 保存一条原始推送消息
func (a *MessageArchive) SaveFeedMessage(channel, payload string) error {
	query := `
		INSERT INTO feed_messages (channel, payload, received_at)
		VALUES ($1, $2, $3)
	`
	_, err := a.db.Exec(query, channel, payload, time.Now())
	return err
}

// SaveOddsUpdate 保存一条赔率更新记录
func (a *MessageArchive) SaveOddsUpdate(eventGroupID, outcomeID, numerator, denominator string) error {
	query := `
		INSERT INTO odds_updates (event_group_id, outcome_id, numerator, denominator)
		VALUES ($1, $2, $3, $4)
	`
	_, err := a.db.Exec(query, eventGroupID, outcomeID, numerator, denominator)
	return err
}

// GetMessages 按通道查询归档消息
func (a *MessageArchive) GetMessages(limit, offset int, channel string) ([]map[string]interface{}, error) {
	query := `
		SELECT id, channel, payload, received_at
		FROM feed_messages
		WHERE ($1 = '' OR channel = $1)
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := a.db.Query(query, channel, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []map[string]interface{}
	for rows.Next() {
		var (
			id         int64
			ch         string
			payload    string
			receivedAt time.Time
		)
		if err := rows.Scan(&id, &ch, &payload, &receivedAt); err != nil {
			return nil, err
		}
		messages = append(messages, map[string]interface{}{
			"id":          id,
			"channel":     ch,
			"payload":     payload,
			"received_at": receivedAt,
		})
	}

	return messages, rows.Err()
}

// GetStats 归档统计
func (a *MessageArchive) GetStats() (map[string]int, error) {
	stats := map[string]int{}

	var total int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM feed_messages").Scan(&total); err != nil {
		return nil, err
	}
	stats["total_messages"] = total

	var oddsUpdates int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM odds_updates").Scan(&oddsUpdates); err != nil {
		return nil, err
	}
	stats["odds_updates"] = oddsUpdates

	return stats, nil
}
