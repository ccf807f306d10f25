// Package history persists equity points to an append-only WAL so the
// chart survives dashboard restarts.
package history

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// ErrNoData returned when the WAL holds no equity points yet.
var ErrNoData = errors.New("no data in WAL")

const pointKeyPrefix = "equity_"

// Store wraps a gowal log keyed by account id.
type Store struct {
	wal *gowal.Wal
}

// NewStore opens (or creates) the WAL in dir.
func NewStore(dir string) (*Store, error) {
	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "seg_",
		SegmentThreshold: 1000,
		MaxSegments:      100,
		IsInSyncDiskMode: false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error init wal")
	}

	return &Store{wal: w}, nil
}

type walRecord struct {
	Point      domain.EquityPoint `json:"p"`
	Index      uint64             `json:"i"`
	Generation uint64             `json:"g"`
}

// Append writes one equity point for the account. The chart index the
// point was delivered under is persisted with it, so a rebuilt chart
// book hands out the same ids it did before the restart.
func (s *Store) Append(accountID string, index, generation uint64, p domain.EquityPoint) error {
	data, err := json.Marshal(walRecord{Point: p, Index: index, Generation: generation})
	if err != nil {
		return errors.Wrap(err, "failed to marshal equity point")
	}

	return s.wal.Write(s.wal.CurrentIndex()+1, pointKeyPrefix+accountID, data)
}

// Replay invokes fn for every stored point in write order.
func (s *Store) Replay(fn func(accountID string, index, generation uint64, p domain.EquityPoint)) error {
	empty := true
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, pointKeyPrefix) {
			continue
		}

		var rec walRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return errors.Wrapf(err, "error unmarshal equity point %s", msg.Key)
		}
		empty = false
		fn(strings.TrimPrefix(msg.Key, pointKeyPrefix), rec.Index, rec.Generation, rec.Point)
	}

	if empty {
		return ErrNoData
	}
	return nil
}

func (s *Store) Close() error {
	return s.wal.Close()
}
