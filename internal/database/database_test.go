package database

import (
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path: got %q, want %q", db.Path(), path)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	// 迁移可重复执行
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	_, err = db.Exec(`INSERT INTO speech_cache (cache_key, model, voice, sample_rate) VALUES (?, ?, ?, ?)`,
		"k1", "m", "expr-voice-2-f", 24000)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var voice string
	var speed float64
	if err := db.QueryRow(`SELECT voice, speed FROM speech_cache WHERE cache_key = ?`, "k1").Scan(&voice, &speed); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if voice != "expr-voice-2-f" || speed != 1.0 {
		t.Errorf("unexpected row: voice=%q speed=%v", voice, speed)
	}
}
