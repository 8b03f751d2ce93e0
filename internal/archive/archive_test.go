package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"whiteboard/api/internal/board"
)

func sampleRecord() Record {
	return Record{
		Whiteboard: board.Whiteboard{
			ID:      "wb_1",
			Name:    "Roadmap",
			Content: json.RawMessage(`{"document":{"shapes":[{"id":"s1"}]}}`),
			Status:  board.StatusPublished,
			ShareID: "share-1",
			UserID:  "owner",
			Comments: []board.Comment{
				{ID: "cm_1", Content: "hello", X: 1.5, Y: -2, UserID: "u2", UserName: "Ana", WhiteboardID: "wb_1"},
			},
		},
		DeletedBy:  "owner",
		ArchivedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, err := Encode(sampleRecord())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.HasPrefix(payload, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Fatalf("expected zstd frame magic, got % x", payload[:4])
	}

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Whiteboard.ID != "wb_1" || got.DeletedBy != "owner" || !got.ArchivedAt.Equal(sampleRecord().ArchivedAt) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Whiteboard.Comments) != 1 || got.Whiteboard.Comments[0].X != 1.5 {
		t.Fatalf("comments lost: %+v", got.Whiteboard.Comments)
	}
	if !strings.Contains(string(got.Whiteboard.Content), `"s1"`) {
		t.Fatalf("content lost: %s", got.Whiteboard.Content)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not zstd")); err == nil {
		t.Fatal("expected error")
	}
}

func TestKey(t *testing.T) {
	if got := Key(sampleRecord()); got != "archive/wb_1/1700000000.json.zst" {
		t.Fatalf("Key() = %q", got)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestStoreRoundTripMinio(t *testing.T) {
	endpoint := strings.TrimSpace(os.Getenv("WHITEBOARD_TEST_S3_ENDPOINT"))
	if endpoint == "" {
		t.Skip("WHITEBOARD_TEST_S3_ENDPOINT is not set")
	}
	s, err := New(Config{
		Endpoint:  endpoint,
		Bucket:    "whiteboard-archive-test",
		AccessKey: os.Getenv("WHITEBOARD_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("WHITEBOARD_TEST_S3_SECRET_KEY"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	key, err := s.Put(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Whiteboard.ID != "wb_1" {
		t.Fatalf("unexpected record: %+v", got)
	}
}
