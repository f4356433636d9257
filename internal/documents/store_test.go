package documents

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/testutil"
)

func TestPutAndGet(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := NewStore(database.Queries, "http://localhost:8080/")
	ctx := context.Background()

	ref, err := store.Put(ctx, []byte("%PDF-1.3 test"), "application/pdf", "closing.pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(ref.URL, "http://localhost:8080/api/v1/documents/") || !strings.HasSuffix(ref.URL, ref.Key) {
		t.Fatalf("url: %s", ref.URL)
	}

	doc, err := store.Get(ctx, ref.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ContentType != "application/pdf" || !bytes.Equal(doc.Data, []byte("%PDF-1.3 test")) {
		t.Fatalf("doc: %+v", doc)
	}
}

func TestGetMissing(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := NewStore(database.Queries, "")
	ctx := context.Background()

	for _, key := range []string{"not-a-uuid", "5b0f0f0e-8f1c-4a9e-9d1e-3c1b2a3d4e5f"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("key %s: expected not found, got %v", key, err)
		}
	}

	if _, err := store.Put(ctx, nil, "application/pdf", "empty.pdf"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty document, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := NewStore(database.Queries, "")
	ctx := context.Background()

	ref, err := store.Put(ctx, []byte("%PDF-1.3 test"), "application/pdf", "closing.pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, ref.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, ref.Key); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ctx, ref.Key); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
