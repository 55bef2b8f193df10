// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/23jmo/typr-server/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormPlayerRating{},
		&models.GormRaceRecord{},
	)
}

// SaveRaceRecord 保存比赛记录
func (g *GormPostgreSQL) SaveRaceRecord(record *models.GormRaceRecord) error {
	return g.db.Create(record).Error
}

// ApplyRatingChange 更新玩家评分和统计数据
func (g *GormPostgreSQL) ApplyRatingChange(playerID, username string, delta int, won bool, wpm float64) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var rating models.GormPlayerRating
		err := tx.Where("player_id = ?", playerID).First(&rating).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rating = models.GormPlayerRating{
				PlayerID: playerID,
				Username: username,
				Rating:   1000,
			}
			if err := tx.Create(&rating).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		rating.Username = username
		rating.Rating += delta
		rating.RacesTotal++
		if won {
			rating.RacesWon++
		}
		if wpm > rating.BestWPM {
			rating.BestWPM = wpm
		}

		return tx.Save(&rating).Error
	})
}

// GetPlayerStats 获取玩家统计信息
func (g *GormPostgreSQL) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	var rating models.GormPlayerRating
	err := g.db.Where("player_id = ?", playerID).First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"player_id":   rating.PlayerID,
		"username":    rating.Username,
		"rating":      rating.Rating,
		"races_won":   rating.RacesWon,
		"races_total": rating.RacesTotal,
		"best_wpm":    rating.BestWPM,
	}, nil
}

// Close 关闭数据库连接
func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
