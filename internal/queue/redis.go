package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// popDueScript atomically takes the earliest due job off a queue's sorted set.
// Without the script two workers could both read and both process the same job.
var popDueScript = redis.NewScript(`
	local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
	if #due == 0 then
		return false
	end
	redis.call("ZREM", KEYS[1], due[1])
	return due[1]
`)

// RedisQueue is a Redis-backed implementation of Queue. Jobs live in one
// sorted set per named queue, scored by their RunAt time, so delayed dispatch
// falls out of ZRANGEBYSCORE.
type RedisQueue struct {
	client    *redis.Client
	keyPrefix string
}

// RedisQueueConfig holds configuration for the Redis queue.
type RedisQueueConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisQueue creates a Redis-backed queue and verifies connectivity.
func NewRedisQueue(cfg RedisQueueConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "storesync:queue"
	}

	log.Printf("[RedisQueue] Started - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return &RedisQueue{client: client, keyPrefix: keyPrefix}, nil
}

// NewRedisQueueFromClient wraps an existing client (shared with the cache).
func NewRedisQueueFromClient(client *redis.Client, keyPrefix string) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = "storesync:queue"
	}
	return &RedisQueue{client: client, keyPrefix: keyPrefix}
}

func (q *RedisQueue) queueKey(queueName string) string {
	return q.keyPrefix + ":" + queueName
}

// Enqueue schedules a job, scored by its RunAt time.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	err = q.client.ZAdd(ctx, q.queueKey(job.Queue), redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue pops the earliest due job from the named queue.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	now := time.Now().UnixMilli()

	raw, err := popDueScript.Run(ctx, q.client, []string{q.queueKey(queueName)}, now).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue from %s: %w", queueName, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Unparseable member is dropped already (ZREM ran); log and move on.
		log.Printf("[RedisQueue] Dropping unparseable job on %s: %v", queueName, err)
		return nil, nil
	}
	return &job, nil
}

// Depth returns how many jobs (due or scheduled) sit on the named queue.
func (q *RedisQueue) Depth(ctx context.Context, queueName string) (int64, error) {
	return q.client.ZCard(ctx, q.queueKey(queueName)).Result()
}

// Close releases the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
