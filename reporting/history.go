package reporting

import (
	"encoding/binary"
	"time"

	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	// runsBucket maps run keys (start time followed by run id) to CBOR-encoded reports.
	runsBucket = []byte("runs")
	// runIndexBucket maps run ids to run keys.
	runIndexBucket = []byte("run-index")
)

// ErrRunNotFound is returned by HistoryStore.Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// HistoryStore persists reports of past runs in a bbolt database, ordered by start time.
type HistoryStore struct {
	db *bbolt.DB
}

// OpenHistoryStore opens the history database at path, creating it and its parent directories if needed.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	if err := utils.EnsureParentDirectory(path); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open history database %s", path)
	}

	// create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(runsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(runIndexBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	return &HistoryStore{db: db}, nil
}

// runKey builds the key a report is stored under. Keys sort by start time.
func runKey(report *execution.Report) []byte {
	key := make([]byte, 8, 8+len(report.RunID))
	binary.BigEndian.PutUint64(key, uint64(report.StartedAt.UnixNano()))
	return append(key, report.RunID[:]...)
}

// Write records the report, implementing Sink.
func (h *HistoryStore) Write(report *execution.Report) error {
	data, err := MarshalCBOR(report)
	if err != nil {
		return err
	}
	key := runKey(report)

	err = h.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(runsBucket).Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(runIndexBucket).Put(report.RunID[:], key)
	})
	if err != nil {
		return errors.Wrap(err, "could not record run")
	}
	reportingLogger.Debug("Recorded run ", report.RunID.String(), " in history")
	return nil
}

// Get returns the report of the run with the provided id, or ErrRunNotFound.
func (h *HistoryStore) Get(runID uuid.UUID) (*execution.Report, error) {
	var data []byte
	err := h.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(runIndexBucket).Get(runID[:])
		if key == nil {
			return ErrRunNotFound
		}
		stored := tx.Bucket(runsBucket).Get(key)
		if stored == nil {
			return ErrRunNotFound
		}
		// bbolt values are only valid inside the transaction
		data = append([]byte(nil), stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return UnmarshalCBOR(data)
}

// List returns up to limit reports, most recent first. A limit of zero or less returns every report.
func (h *HistoryStore) List(limit int) ([]*execution.Report, error) {
	var reports []*execution.Report
	err := h.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(runsBucket).Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			report, err := UnmarshalCBOR(v)
			if err != nil {
				return errors.Wrapf(err, "could not decode run %x", k)
			}
			reports = append(reports, report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Close closes the underlying database.
func (h *HistoryStore) Close() error {
	return errors.WithStack(h.db.Close())
}
