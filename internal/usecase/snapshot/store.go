package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	snapshotv1 "github.com/openspot/matching-core/internal/domain/snapshot/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/redis"
)

const keyPrefix = "snapshot:"

// Store persists book snapshots in Redis, one key per instrument. The stored
// snapshot is the engine's only progress record across restarts.
type Store struct {
	instrument  string
	logger      logger.Interface
	redisclient redis.Client
}

var _ snapshotv1.Store = (*Store)(nil)

// NewSnapshotStore creates a store for the given instrument.
func NewSnapshotStore(redisclient redis.Client, instrument string, log logger.Interface) *Store {
	return &Store{
		instrument:  instrument,
		redisclient: redisclient,
		logger:      log,
	}
}

// Store serializes the snapshot and writes it to Redis without expiry.
func (s *Store) Store(ctx context.Context, snapshot *snapshotv1.Snapshot) error {
	buf, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: s.instrument,
		})
		return errors.NewTracer("snapshot_marshal_error").Wrap(err)
	}

	if err := s.redisclient.Set(ctx, keyPrefix+s.instrument, buf, 0); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: s.instrument,
		}, logger.Field{
			Key:   "job_offset",
			Value: snapshot.JobOffset,
		})
		return errors.NewTracer("snapshot_store_error").Wrap(err)
	}

	s.logger.InfoContext(ctx, fmt.Sprintf("Snapshot stored for instrument %s", s.instrument), logger.Field{
		Key:   "instrument",
		Value: s.instrument,
	}, logger.Field{
		Key:   "job_offset",
		Value: snapshot.JobOffset,
	}, logger.Field{
		Key:   "resting_orders",
		Value: len(snapshot.Asks) + len(snapshot.Bids),
	})
	return nil
}

// LoadStore reads the snapshot back, returning nil without error when no
// snapshot has ever been stored.
func (s *Store) LoadStore(ctx context.Context) (*snapshotv1.Snapshot, error) {
	data, err := s.redisclient.Get(ctx, keyPrefix+s.instrument)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: s.instrument,
		}, logger.Field{
			Key:   "action",
			Value: "load snapshot",
		})
		return nil, errors.NewTracer("snapshot_load_error").Wrap(err)
	}

	if data == "" {
		s.logger.WarnContext(ctx, fmt.Sprintf("No snapshot found for instrument %s", s.instrument), logger.Field{
			Key:   "instrument",
			Value: s.instrument,
		})
		return nil, nil
	}

	var snapshot snapshotv1.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: s.instrument,
		}, logger.Field{
			Key:   "action",
			Value: "unmarshal snapshot",
		})
		return nil, errors.NewTracer("snapshot_unmarshal_error").Wrap(err)
	}

	return &snapshot, nil
}
