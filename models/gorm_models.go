package models

import (
	"gorm.io/gorm"
)

// GormPlayerRating 持有每个玩家的天梯信息
// (one row per player identity; rating moves after every ranked race)
type GormPlayerRating struct {
	gorm.Model
	PlayerID   string `gorm:"uniqueIndex;not null"`
	Username   string `gorm:"not null"`
	Rating     int    `gorm:"default:1000"`
	RacesWon   int    `gorm:"default:0"`
	RacesTotal int    `gorm:"default:0"`
	BestWPM    float64
}

// GormRaceRecord is the archived outcome of one completed race.
type GormRaceRecord struct {
	gorm.Model
	RoomID     string `gorm:"index;not null"`
	Ranked     bool   `gorm:"not null"`
	WinnerID   string
	DurationMs int64
	Players    []byte `gorm:"type:jsonb;not null"`
}
