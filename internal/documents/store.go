// Package documents stores generated files and hands back retrievable URLs.
package documents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/db"
)

// Sink accepts a document and returns a URL it can be fetched from. Delete
// removes a document whose owning record never got written.
type Sink interface {
	Put(ctx context.Context, data []byte, contentType, name string) (Ref, error)
	Delete(ctx context.Context, key string) error
}

type Ref struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store keeps documents in the database's documents table.
type Store struct {
	queries *db.Queries
	baseURL string
	now     func() time.Time
}

func NewStore(queries *db.Queries, baseURL string) *Store {
	return &Store{
		queries: queries,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *Store) Put(ctx context.Context, data []byte, contentType, name string) (Ref, error) {
	if len(data) == 0 {
		return Ref{}, apperr.Invalid("document %q is empty", name)
	}
	key := uuid.NewString()
	err := s.queries.PutDocument(ctx, db.Document{
		Key:         key,
		Name:        name,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return Ref{}, apperr.Upstream("store document", err)
	}
	return Ref{Key: key, URL: s.URL(key)}, nil
}

func (s *Store) Get(ctx context.Context, key string) (db.Document, error) {
	if _, err := uuid.Parse(key); err != nil {
		return db.Document{}, apperr.NotFound("document", key)
	}
	doc, err := s.queries.GetDocument(ctx, key)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Document{}, apperr.NotFound("document", key)
		}
		return db.Document{}, apperr.Upstream("load document", err)
	}
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	rows, err := s.queries.DeleteDocument(ctx, key)
	if err != nil {
		return apperr.Upstream("delete document", err)
	}
	if rows == 0 {
		return apperr.NotFound("document", key)
	}
	return nil
}

func (s *Store) URL(key string) string {
	return s.baseURL + "/api/v1/documents/" + key
}
