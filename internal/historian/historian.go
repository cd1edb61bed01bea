// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fourline/internal/database"
	"fourline/internal/models"
)

// Service drains match records from the Redis queue and persists them to
// the match_history table in batches. It is an audit trail: the rating
// engine's synchronous write remains the commit point, so losing a queued
// record costs detail, never correctness.
type Service struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration
	logger      *logrus.Logger

	batchMu sync.Mutex
	batch   []models.MatchRecord

	// flushFn persists one batch; tests substitute a collector.
	flushFn func(ctx context.Context, records []models.MatchRecord) error

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewService constructs a historian reading from the given Redis client.
func NewService(rdb *redis.Client, queueName string, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		redisClient: rdb,
		queueName:   queueName,
		batchSize:   batchSize,
		flushDelay:  flushDelay,
		logger:      logger,
		batch:       make([]models.MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
	s.flushFn = s.flushToDB
	return s
}

// Run blocks, consuming the queue until Stop is called.
func (s *Service) Run() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		default:
			res, err := s.redisClient.BLPop(s.ctx, 3*time.Second, s.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
					s.logger.WithError(err).Error("blpop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record models.MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				s.logger.WithError(err).Warn("invalid match record, skipping")
				continue
			}
			s.Append(record)
		}
	}
}

// Stop cancels the run loop; the loop performs a final flush on exit.
func (s *Service) Stop() {
	s.cancelFn()
}

// Append adds a record to the in-memory batch, flushing once the batch
// threshold is reached.
func (s *Service) Append(record models.MatchRecord) {
	s.batchMu.Lock()
	full := false
	s.batch = append(s.batch, record)
	if len(s.batch) >= s.batchSize {
		full = true
	}
	s.batchMu.Unlock()

	if full {
		s.Flush()
	}
}

// Flush persists and clears the current batch.
func (s *Service) Flush() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	records := s.batch
	s.batch = make([]models.MatchRecord, 0, s.batchSize)
	s.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.flushFn(ctx, records); err != nil {
		s.logger.WithError(err).WithField("count", len(records)).Error("failed to flush match history batch")
	}
}

// flushToDB writes one batch to match_history in a single transaction.
func (s *Service) flushToDB(ctx context.Context, records []models.MatchRecord) error {
	return pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO match_history (room_id, winner_id, loser_id, winner_elo, loser_elo, finished_at)
			VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1000.0))
		`
		for _, rec := range records {
			if _, err := tx.Exec(ctx, q,
				rec.RoomID, rec.WinnerID, rec.LoserID,
				rec.WinnerElo, rec.LoserElo, rec.Timestamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
}
