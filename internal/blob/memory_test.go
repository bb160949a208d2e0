package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Put(ctx, "cat.png", "image/png", 4, strings.NewReader("meow"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	obj, err := s.Open(ctx, id)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(obj)
	obj.Close()
	if string(data) != "meow" || obj.ContentType != "image/png" || obj.Size != 4 {
		t.Errorf("unexpected object: %q %s %d", data, obj.ContentType, obj.Size)
	}

	if _, err := s.Open(ctx, "not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	if _, err := s.Open(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}
