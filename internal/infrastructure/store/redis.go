package store

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const changeChannel = "focusgate:changed"

// Redis is the production Store backend. Change notifications ride a
// pub/sub channel so every gateway instance and execution context sees
// session transitions without polling.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	watchers map[string][]ChangeFunc
}

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and starts the change-notification listener.
func NewRedis(cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}

	r := &Redis{
		client:   client,
		prefix:   cfg.Prefix,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[string][]ChangeFunc),
	}

	r.wg.Add(1)
	go r.listen()

	return r, nil
}

// Get returns the value for key or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores the value with no TTL and publishes a change notification.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return err
	}
	if err := r.client.Publish(ctx, changeChannel, key).Err(); err != nil {
		r.logger.Warn("store: publish failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Delete removes the key and publishes a change notification.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return err
	}
	if err := r.client.Publish(ctx, changeChannel, key).Err(); err != nil {
		r.logger.Warn("store: publish failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Watch registers a change callback for key.
func (r *Redis) Watch(key string, fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[key] = append(r.watchers[key], fn)
}

// Close stops the listener and closes the connection.
func (r *Redis) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}

func (r *Redis) listen() {
	defer r.wg.Done()

	sub := r.client.Subscribe(r.ctx, changeChannel)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.logger.Warn("store: subscribe error", zap.Error(err))
			continue
		}

		key := msg.Payload
		value, err := r.Get(r.ctx, key)
		if err != nil && err != ErrNotFound {
			r.logger.Warn("store: read after change failed", zap.String("key", key), zap.Error(err))
			continue
		}

		r.mu.RLock()
		fns := r.watchers[key]
		r.mu.RUnlock()
		for _, fn := range fns {
			fn(key, value)
		}
	}
}
