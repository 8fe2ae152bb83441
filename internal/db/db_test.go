package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS kv_entries")
	assert.Contains(t, schema, "key        TEXT PRIMARY KEY")
}

func TestClose_WithoutPool(t *testing.T) {
	db := &DB{}
	assert.NotPanics(t, db.Close)
}

func TestWatch_CancelWithoutListener(t *testing.T) {
	db := &DB{}
	cancel := db.watchers.Add(func(string) {})
	cancel()
	assert.NotPanics(t, db.stopListening)
	assert.Zero(t, db.watchers.Len())
}
