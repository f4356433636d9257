package db

import "context"

func (q *Queries) PutDocument(ctx context.Context, doc Document) error {
	_, err := q.namedExec(ctx, `
		INSERT INTO documents (doc_key, name, content_type, data, created_at)
		VALUES (:doc_key, :name, :content_type, :data, :created_at)`, doc)
	return err
}

func (q *Queries) DeleteDocument(ctx context.Context, key string) (int64, error) {
	return rowsAffected(q.exec(ctx, `DELETE FROM documents WHERE doc_key = ?`, key))
}

func (q *Queries) GetDocument(ctx context.Context, key string) (Document, error) {
	var doc Document
	err := q.get(ctx, &doc,
		`SELECT doc_key, name, content_type, data, created_at FROM documents WHERE doc_key = ?`,
		key,
	)
	return doc, err
}
