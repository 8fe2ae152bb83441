package db

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/currency-annotator/internal/storage"
)

// Get implements storage.Store.
func (db *DB) Get(ctx context.Context, key string, dst any) (bool, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, &storage.StoreError{Op: "get", Key: key, Cause: err}
	}
	if err := json.Unmarshal(content, dst); err != nil {
		return true, &storage.StoreError{Op: "get", Key: key, Cause: err}
	}
	return true, nil
}

// Set implements storage.Store. The write and its notification commit
// together.
func (db *DB) Set(ctx context.Context, key string, value any) error {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}

	err = pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO kv_entries (key, value)
			 VALUES ($1, $2::jsonb)
			 ON CONFLICT (key) DO UPDATE SET value = $2::jsonb, updated_at = NOW()`,
			key, string(jsonBytes),
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, key)
		return err
	})
	if err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}
	return nil
}

// Delete implements storage.Store.
func (db *DB) Delete(ctx context.Context, key string) error {
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, key)
		return err
	})
	if err != nil {
		return &storage.StoreError{Op: "delete", Key: key, Cause: err}
	}
	return nil
}

// Watch implements storage.Store. The first watcher holds a pooled
// connection in LISTEN mode until the last one is cancelled.
func (db *DB) Watch(fn func(key string)) func() {
	cancel := db.watchers.Add(fn)
	db.startListening()
	return func() {
		cancel()
		if db.watchers.Len() == 0 {
			db.stopListening()
		}
	}
}

type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (db *DB) startListening() {
	db.listenMu.Lock()
	defer db.listenMu.Unlock()
	if db.listener != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{cancel: cancel, done: make(chan struct{})}
	db.listener = l
	go db.listen(ctx, l.done)
}

func (db *DB) stopListening() {
	db.listenMu.Lock()
	l := db.listener
	db.listener = nil
	db.listenMu.Unlock()
	if l == nil {
		return
	}
	l.cancel()
	<-l.done
}

// listen relays notifications to watchers, reconnecting after failures
// until ctx is cancelled.
func (db *DB) listen(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		if err := db.listenOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[STORE] Listening on %s failed: %v", ChangesChannel, err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (db *DB) listenOnce(ctx context.Context) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return err
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		db.watchers.Notify(notification.Payload)
	}
}
