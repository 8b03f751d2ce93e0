package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("wb")
	if !strings.HasPrefix(id, "wb_") {
		t.Fatalf("expected wb_ prefix, got %q", id)
	}
	if len(id) != len("wb_")+32 {
		t.Fatalf("unexpected id length %d for %q", len(id), id)
	}
	if NewID("wb") == id {
		t.Fatal("expected distinct ids")
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatal("expected bare id without separator")
	}
}

func TestNewShareTokenIsUUID(t *testing.T) {
	token := NewShareToken()
	if _, err := uuid.Parse(token); err != nil {
		t.Fatalf("share token %q is not a uuid: %v", token, err)
	}
}
