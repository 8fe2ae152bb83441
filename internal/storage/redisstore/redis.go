// Package redisstore stores settings in Redis and shares change
// notifications between processes over pub/sub.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/currency-annotator/internal/storage"
)

// ChangesChannel is the pub/sub channel carrying changed keys.
const ChangesChannel = "ccx:changes"

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key.
	Prefix string
}

// ConfigFromEnv reads REDIS_ADDR, REDIS_PASS and REDIS_DB.
func ConfigFromEnv() Config {
	cfg := Config{Addr: os.Getenv("REDIS_ADDR"), Password: os.Getenv("REDIS_PASS")}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			cfg.DB = db
		}
	}
	return cfg
}

// Store implements storage.Store on Redis.
type Store struct {
	client   *redis.Client
	prefix   string
	watchers storage.Watchers

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New connects to Redis and verifies connectivity.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Store{client: client, prefix: cfg.Prefix}, nil
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, &storage.StoreError{Op: "get", Key: key, Cause: err}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, &storage.StoreError{Op: "get", Key: key, Cause: err}
	}
	return true, nil
}

// Set implements storage.Store and publishes the change.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}
	return s.publish(ctx, key)
}

// Delete implements storage.Store and publishes the change.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &storage.StoreError{Op: "delete", Key: key, Cause: err}
	}
	return s.publish(ctx, key)
}

func (s *Store) publish(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, s.key(ChangesChannel), key).Err(); err != nil {
		return &storage.StoreError{Op: "publish", Key: key, Cause: err}
	}
	return nil
}

// Watch implements storage.Store. The first watcher starts a subscription to
// ChangesChannel, so changes made by other processes are seen too.
func (s *Store) Watch(fn func(key string)) func() {
	cancel := s.watchers.Add(fn)
	s.ensureSubscribed()
	return func() {
		cancel()
		if s.watchers.Len() == 0 {
			s.unsubscribe()
		}
	}
}

func (s *Store) ensureSubscribed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := s.client.Subscribe(ctx, s.key(ChangesChannel))
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.watchers.Notify(msg.Payload)
			}
		}
	}()
}

func (s *Store) unsubscribe() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the subscription and closes the client.
func (s *Store) Close() error {
	s.unsubscribe()
	if err := s.client.Close(); err != nil {
		log.Printf("[STORE] Failed to close redis client: %v", err)
		return err
	}
	return nil
}
