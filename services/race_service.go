// services/race_service.go
package services

import (
	"encoding/json"
	"math"

	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/persistence"
)

// eloK is the rating swing factor per ranked race.
const eloK = 32

type RaceService struct {
	db persistence.Database
}

func NewRaceService(db persistence.Database) *RaceService {
	return &RaceService{db: db}
}

// RecordRace 持久化比赛结果并更新天梯评分
//
// Called on its own goroutine after every race; persistence failures
// are logged and swallowed so they never reach the room path.
func (s *RaceService) RecordRace(result models.RaceResult) {
	if s == nil || s.db == nil {
		return
	}

	players, err := json.Marshal(result.Players)
	if err != nil {
		logger.Log.Errorw("marshal race players", "room", result.RoomID, "error", err)
		return
	}

	record := &models.GormRaceRecord{
		RoomID:     result.RoomID,
		Ranked:     result.Ranked,
		WinnerID:   result.WinnerID,
		DurationMs: result.DurationMs,
		Players:    players,
	}
	if err := s.db.SaveRaceRecord(record); err != nil {
		logger.Log.Errorw("save race record", "room", result.RoomID, "error", err)
	}

	if !result.Ranked || len(result.Players) != 2 {
		return
	}

	a, b := result.Players[0], result.Players[1]
	deltaA := ratingDelta(a.Rating, b.Rating, a.PlayerID == result.WinnerID)
	deltaB := ratingDelta(b.Rating, a.Rating, b.PlayerID == result.WinnerID)

	s.applyRating(a, deltaA, a.PlayerID == result.WinnerID)
	s.applyRating(b, deltaB, b.PlayerID == result.WinnerID)
}

func (s *RaceService) applyRating(p models.RacePlayerResult, delta int, won bool) {
	if err := s.db.ApplyRatingChange(p.PlayerID, p.Username, delta, won, p.WPM); err != nil {
		logger.Log.Errorw("apply rating change", "player", p.PlayerID, "delta", delta, "error", err)
	}
}

// ratingDelta computes the ELO adjustment for a player against one
// opponent, using the ratings both carried into the match.
func ratingDelta(rating, opponent int, won bool) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
	score := 0.0
	if won {
		score = 1.0
	}
	return int(math.Round(eloK * (score - expected)))
}

// PlayerStats 查询玩家统计信息
func (s *RaceService) PlayerStats(playerID string) (map[string]interface{}, error) {
	return s.db.GetPlayerStats(playerID)
}
