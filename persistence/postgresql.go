// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/23jmo/typr-server/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS gorm_player_ratings (
            id SERIAL PRIMARY KEY,
            player_id TEXT UNIQUE NOT NULL,
            username TEXT NOT NULL,
            rating INTEGER NOT NULL DEFAULT 1000,
            races_won INTEGER NOT NULL DEFAULT 0,
            races_total INTEGER NOT NULL DEFAULT 0,
            best_wpm DOUBLE PRECISION NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS gorm_race_records (
            id SERIAL PRIMARY KEY,
            room_id TEXT NOT NULL,
            ranked BOOLEAN NOT NULL DEFAULT FALSE,
            winner_id TEXT,
            duration_ms BIGINT NOT NULL DEFAULT 0,
            players JSONB,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_race_records_room ON gorm_race_records(room_id)`)
	return err
}

// SaveRaceRecord 保存比赛记录
func (p *PostgreSQL) SaveRaceRecord(record *models.GormRaceRecord) error {
	_, err := p.db.Exec(`
        INSERT INTO gorm_race_records (room_id, ranked, winner_id, duration_ms, players)
        VALUES ($1, $2, $3, $4, $5)
    `, record.RoomID, record.Ranked, record.WinnerID, record.DurationMs, record.Players)
	return err
}

// ApplyRatingChange 更新玩家评分和统计数据
func (p *PostgreSQL) ApplyRatingChange(playerID, username string, delta int, won bool, wpm float64) error {
	wonInc := 0
	if won {
		wonInc = 1
	}
	_, err := p.db.Exec(`
        INSERT INTO gorm_player_ratings (player_id, username, rating, races_won, races_total, best_wpm)
        VALUES ($1, $2, 1000 + $3, $4, 1, $5)
        ON CONFLICT (player_id) DO UPDATE SET
            username = EXCLUDED.username,
            rating = gorm_player_ratings.rating + $3,
            races_won = gorm_player_ratings.races_won + $4,
            races_total = gorm_player_ratings.races_total + 1,
            best_wpm = GREATEST(gorm_player_ratings.best_wpm, $5),
            updated_at = CURRENT_TIMESTAMP
    `, playerID, username, delta, wonInc, wpm)
	return err
}

// GetPlayerStats 获取玩家统计信息
func (p *PostgreSQL) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	row := p.db.QueryRow(`
        SELECT player_id, username, rating, races_won, races_total, best_wpm
        FROM gorm_player_ratings WHERE player_id = $1
    `, playerID)

	var (
		id, username       string
		rating, won, total int
		bestWPM            float64
	)
	if err := row.Scan(&id, &username, &rating, &won, &total, &bestWPM); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return map[string]interface{}{
		"player_id":   id,
		"username":    username,
		"rating":      rating,
		"races_won":   won,
		"races_total": total,
		"best_wpm":    bestWPM,
	}, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
