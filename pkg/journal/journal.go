// Package journal keeps a local history of backup runs in a bbolt
// database.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sdejongh/backup2ftp/pkg/models"
)

const bucketName = "runs"

// DefaultKeep is the number of runs kept by Prune when no limit is given
const DefaultKeep = 100

// Journal stores run reports keyed by start time
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path.
// The timeout keeps a second backup process from blocking forever on the
// file lock.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores report
func (j *Journal) Record(report *models.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(runKey(report), data)
	})
}

// Recent returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (j *Journal) Recent(limit int) ([]*models.RunReport, error) {
	var runs []*models.RunReport

	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var report models.RunReport
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("failed to decode run %x: %w", k, err)
			}
			runs = append(runs, &report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Count returns the number of stored runs
func (j *Journal) Count() (int, error) {
	n := 0
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune deletes all but the keep newest runs and returns how many were
// removed
func (j *Journal) Prune(keep int) (int, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}

	removed := 0
	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		var stale [][]byte
		seen := 0
		c := b.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return removed, nil
}

// runKey orders runs by start time; the run ID keeps keys unique
func runKey(report *models.RunReport) []byte {
	key := make([]byte, 8, 8+len(report.RunID))
	binary.BigEndian.PutUint64(key, uint64(report.StartTime.UnixNano()))
	return append(key, report.RunID...)
}
