package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

var ctx = context.Background()

type Config struct {
	LockExpirationSeconds   int     `envconfig:"CLS_COMN_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"CLS_COMN_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"CLS_COMN_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"CLS_COMN_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"CLS_COMN_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"CLS_COMN_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"CLS_COMN_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"CLS_COMN_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"CLS_COMN_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

// Client wraps one logical Redis database. Task documents are shared with
// other services, so writes go through MergeUpdate, which holds a lock and
// merge-patches the stored JSON instead of overwriting fields this service
// does not own.
type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

func NewClient(db DB) (Client, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		timeout := time.Duration(cfg.HASentinelSocketTimeout) * time.Second
		options := redis.FailoverOptions{
			SentinelAddrs: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)},
			ReadTimeout:   timeout,
			WriteTimeout:  timeout,
			MaxRetries:    6,
			DB:            int(db),
			MasterName:    cfg.HASentinelMasterName,
		}
		if cfg.AuthRequired {
			options.Password = cfg.Password
		}
		client = redis.NewFailoverClusterClient(&options)
	} else {
		options := redis.Options{
			Addr:       fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			MaxRetries: 6,
			DB:         int(db),
		}
		if cfg.AuthRequired {
			options.Password = cfg.Password
		}
		client = redis.NewClient(&options)
	}
	return Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
	}, nil
}

// Get returns the raw JSON stored under key. ok is false when the key is
// absent.
func (client *Client) Get(key string) ([]byte, bool, error) {
	response := client.client.Get(ctx, key)
	if response.Err() == redis.Nil {
		return nil, false, nil
	}
	if response.Err() != nil {
		return nil, false, response.Err()
	}
	b, err := response.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores raw JSON under key. A zero ttl means no expiry.
func (client *Client) Set(key string, value []byte, ttl time.Duration) error {
	return client.client.Set(ctx, key, value, ttl).Err()
}

// MergeUpdate locks key, applies a JSON merge patch to the stored document
// and writes the result back. Fields absent from the patch survive.
func (client *Client) MergeUpdate(key string, patch []byte) (err error) {
	releaseLock, err := client.Lock(key)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	current, ok, err := client.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		current = []byte("{}")
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return fmt.Errorf("failed to merge document %s: %w", key, err)
	}
	return client.Set(key, merged, 0)
}

func (client *Client) Lock(key string) (ReleaseLock, error) {
	locker := redislock.New(client.client)
	strategy := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 20)
	lock, err := locker.Obtain(ctx, fmt.Sprintf("lock:%s", key), client.lockExpiration, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client *Client) Close() error {
	return client.client.Close()
}
