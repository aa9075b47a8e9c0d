package storage

import (
	"context"
	"strings"
	"testing"
)

func TestMigrationsEmbeddedInOrder(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames: %v", err)
	}
	want := []string{"00001_content.sql", "00002_battle_sessions.sql", "00003_battle_history.sql", "00004_word_progress.sql"}
	if len(names) != len(want) {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("migration %d: got %s want %s", i, names[i], want[i])
		}
		raw, err := migrations.ReadFile(migrationsDir + "/" + names[i])
		if err != nil {
			t.Fatalf("read %s: %v", names[i], err)
		}
		if !strings.Contains(string(raw), "-- +goose Up") || !strings.Contains(string(raw), "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", names[i])
		}
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("empty url must be rejected")
	}
}
