package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移（推送消息归档表）
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 推送消息归档表
		`CREATE TABLE IF NOT EXISTS feed_messages (
			id BIGSERIAL PRIMARY KEY,
			channel VARCHAR(50) NOT NULL,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_messages_channel ON feed_messages(channel)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_messages_received_at ON feed_messages(received_at)`,

		// 赔率更新归档表
		`CREATE TABLE IF NOT EXISTS odds_updates (
			id BIGSERIAL PRIMARY KEY,
			event_group_id VARCHAR(100) NOT NULL,
			outcome_id VARCHAR(100) NOT NULL,
			numerator VARCHAR(20),
			denominator VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_odds_updates_event_group_id ON odds_updates(event_group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_odds_updates_outcome_id ON odds_updates(outcome_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
