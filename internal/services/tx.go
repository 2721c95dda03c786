package services

import (
	"time"

	"gorm.io/gorm"
)

// timeNow is indirect so tests can pin the clock.
var timeNow = time.Now

// withTransaction runs fn inside a database transaction. A nil db (as used by
// the in-memory test doubles) runs fn directly with a nil tx, which every
// repo treats as "use your own handle".
func withTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.Transaction(fn)
}
