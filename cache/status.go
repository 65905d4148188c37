package cache

import (
	"context"
	"strconv"
	"time"

	"hlsladder/core/job"
	"hlsladder/core/pipeline"
	"hlsladder/logger"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "hlsladder:"

	// StatusTTL is how long a run's keys outlive its last update.
	StatusTTL = 24 * time.Hour
)

// Run states stored in the "state" hash field.
const (
	RunStateRunning     = "running"
	RunStateFinished    = "finished"
	RunStateInterrupted = "interrupted"
)

// RunKey is the hash holding a run's counters.
func RunKey(runID string) string {
	return keyPrefix + "run:" + runID
}

// FailedKey is the list of "<trackId>\t<error>" entries of a run.
func FailedKey(runID string) string {
	return RunKey(runID) + ":failed"
}

// statusClient is the subset of redis.Cmdable the publisher needs.
type statusClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// StatusPublisher mirrors scheduler progress into Redis. It implements
// pipeline.StatusSink.
type StatusPublisher struct {
	client statusClient
	ttl    time.Duration
	now    func() time.Time
}

// NewStatusPublisher publishes through client, usually RedisClient.
func NewStatusPublisher(client *redis.Client) *StatusPublisher {
	return newStatusPublisher(client)
}

func newStatusPublisher(client statusClient) *StatusPublisher {
	return &StatusPublisher{client: client, ttl: StatusTTL, now: time.Now}
}

var _ pipeline.StatusSink = (*StatusPublisher)(nil)

func (p *StatusPublisher) RunStarted(ctx context.Context, runID string, total int) error {
	return p.setFields(ctx, runID,
		"state", RunStateRunning,
		"total", total,
		"succeeded", 0,
		"skipped", 0,
		"failed", 0,
		"startedAt", p.now().UTC().Format(time.RFC3339),
	)
}

func (p *StatusPublisher) JobFinished(ctx context.Context, runID string, out job.Outcome, snap pipeline.Snapshot) error {
	if out.Err != nil {
		key := FailedKey(runID)
		if err := p.client.RPush(ctx, key, out.TrackID+"\t"+out.Err.Error()).Err(); err != nil {
			return err
		}
		if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
			return err
		}
	}
	return p.setFields(ctx, runID,
		"succeeded", snap.Succeeded,
		"skipped", snap.Skipped,
		"failed", snap.Failed,
		"inFlight", snap.InFlight,
		"etaSeconds", int64(snap.ETA.Seconds()),
		"lastTrack", out.TrackID,
		"updatedAt", p.now().UTC().Format(time.RFC3339),
	)
}

func (p *StatusPublisher) RunFinished(ctx context.Context, s pipeline.Summary) error {
	state := RunStateFinished
	if s.Interrupted {
		state = RunStateInterrupted
	}
	logger.Debug("publishing final run status", logger.String("runId", s.RunID), logger.String("state", state))
	return p.setFields(ctx, s.RunID,
		"state", state,
		"succeeded", s.Succeeded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"inFlight", 0,
		"notStarted", len(s.NotStarted),
		"elapsedSeconds", int64(s.Elapsed.Seconds()),
		"finishedAt", p.now().UTC().Format(time.RFC3339),
	)
}

func (p *StatusPublisher) setFields(ctx context.Context, runID string, values ...interface{}) error {
	key := RunKey(runID)
	if err := p.client.HSet(ctx, key, values...).Err(); err != nil {
		return err
	}
	return p.client.Expire(ctx, key, p.ttl).Err()
}

// RunStatus is a run's status as read back from Redis.
type RunStatus struct {
	RunID    string
	Fields   map[string]string
	Failures []string
}

// Int returns a numeric counter field, 0 when absent.
func (s RunStatus) Int(field string) int {
	n, _ := strconv.Atoi(s.Fields[field])
	return n
}

// Status reads a run's hash and failure list. Found is false when the run is
// unknown or expired.
func (p *StatusPublisher) Status(ctx context.Context, runID string) (RunStatus, bool, error) {
	fields, err := p.client.HGetAll(ctx, RunKey(runID)).Result()
	if err != nil {
		return RunStatus{}, false, err
	}
	if len(fields) == 0 {
		return RunStatus{RunID: runID}, false, nil
	}
	failures, err := p.client.LRange(ctx, FailedKey(runID), 0, -1).Result()
	if err != nil {
		return RunStatus{}, false, err
	}
	return RunStatus{RunID: runID, Fields: fields, Failures: failures}, true, nil
}
