package sqsworker

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const redisEnvconfigPrefix = "REDIS"

// extendIfOwner only touches the key while it still carries our owner value.
var extendIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig holds the connection settings of the Redis lock backend.
type RedisConfig struct {
	Host      string        `envconfig:"HOST" required:"true"`
	Port      int           `envconfig:"PORT" default:"6379"`
	Password  string        `envconfig:"PASSWORD"`
	DB        int           `envconfig:"DB"`
	EnableTLS bool          `envconfig:"ENABLE_TLS"`
	Prefix    string        `envconfig:"PREFIX" default:"sqs-worker:"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"30s"`
}

// RedisConfigFromEnv reads REDIS_* environment variables.
func RedisConfigFromEnv() (RedisConfig, error) {
	c := RedisConfig{}
	if err := envconfig.Process(redisEnvconfigPrefix, &c); err != nil {
		return c, fmt.Errorf("error getting redis configuration from environment: %w", err)
	}
	return c, nil
}

// NewRedisClient connects to the server described by c.
func NewRedisClient(c RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:       fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password:   c.Password,
		DB:         c.DB,
		MaxRetries: 5,
	}
	if c.EnableTLS {
		opts.TLSConfig = &tls.Config{
			ServerName: c.Host,
		}
	}
	return redis.NewClient(opts)
}

// RedisLock holds a key set with SETNX and keeps extending its TTL in the
// background. If the process dies the key expires after one TTL. A key
// that disappears or changes owner is reported through Lost and no longer
// extended.
type RedisLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owner  string

	mu     sync.Mutex
	held   map[string]chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

func NewRedisLock(client *redis.Client, prefix string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	host, _ := os.Hostname()
	return &RedisLock{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		owner:  fmt.Sprintf("%s:%d:%s", host, os.Getpid(), xid.New().String()),
		held:   make(map[string]chan struct{}),
		stop:   make(chan struct{}),
	}
}

func (l *RedisLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, fmt.Errorf("redis lock is closed")
	}
	if _, exists := l.held[key]; exists {
		return false, nil
	}

	name := l.prefix + key
	ok, err := l.client.WithContext(ctx).SetNX(name, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set lock key %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	lost := make(chan struct{})
	l.held[key] = lost
	l.wg.Add(1)
	go l.refresh(name, lost)
	return true, nil
}

// Lost is closed once the lock for key has been taken away. It is nil for
// keys this lock never acquired.
func (l *RedisLock) Lost(key string) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	lost, ok := l.held[key]
	if !ok {
		return nil
	}
	return lost
}

func (l *RedisLock) refresh(name string, lost chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			extended, err := extendIfOwner.Run(l.client, []string{name}, l.owner, l.ttl.Milliseconds()).Int64()
			if err != nil {
				// the key may still be ours, try again on the next tick
				log.Warn().Err(err).Str("lock_key", name).Msg("Failed to extend listener lock")
				continue
			}
			if extended == 0 {
				log.Error().Str("lock_key", name).Msg("Listener lock lost, another listener may own the queue")
				close(lost)
				return
			}
		case <-l.stop:
			return
		}
	}
}

// Close stops extending held keys. They are not deleted, so they expire
// after one TTL.
func (l *RedisLock) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stop)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}
