// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/23jmo/typr-server/models"
)

// Database is the stats persistence boundary. Both the GORM and the raw
// SQL implementations satisfy it; the race service is the only caller
// and treats every failure as log-and-continue.
type Database interface {
	SaveRaceRecord(record *models.GormRaceRecord) error
	// ApplyRatingChange moves a player's rating by delta and folds the
	// race into their aggregates, creating the row on first contact.
	ApplyRatingChange(playerID, username string, delta int, won bool, wpm float64) error
	GetPlayerStats(playerID string) (map[string]interface{}, error)
	Close() error
}

var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
