package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/classcal/internal/model"
)

// PostgresMappingStore はPostgreSQLを使用したイベントマッピングストア。
// (student, slug)の複合主キーにより、同一ペアのエントリは高々1件に保たれる。
type PostgresMappingStore struct {
	db *sql.DB
}

// NewPostgresMappingStore はPostgresMappingStoreを生成する。
func NewPostgresMappingStore(db *sql.DB) *PostgresMappingStore {
	return &PostgresMappingStore{db: db}
}

// Find は指定ペアのマッピングを取得する。見つからない場合はnilを返す。
func (s *PostgresMappingStore) Find(ctx context.Context, student, slug string) (*model.EventMapping, error) {
	m := &model.EventMapping{}
	err := s.db.QueryRowContext(ctx,
		`SELECT student, slug, event_id, html_link, created_at, updated_at
		 FROM event_mappings WHERE student = $1 AND slug = $2`,
		student, slug,
	).Scan(&m.Student, &m.Slug, &m.EventID, &m.HTMLLink, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event mapping: %w", err)
	}

	return m, nil
}

// Save はマッピングをUPSERTする。同一ペアの既存エントリは上書きされる。
func (s *PostgresMappingStore) Save(ctx context.Context, mapping *model.EventMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_mappings (student, slug, event_id, html_link, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (student, slug) DO UPDATE SET
		   event_id = EXCLUDED.event_id,
		   html_link = EXCLUDED.html_link,
		   updated_at = EXCLUDED.updated_at`,
		mapping.Student, mapping.Slug, mapping.EventID, mapping.HTMLLink, mapping.CreatedAt, mapping.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save event mapping: %w", err)
	}
	return nil
}

// List は全マッピングを学生名・スラグ順で返す。
func (s *PostgresMappingStore) List(ctx context.Context) ([]*model.EventMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student, slug, event_id, html_link, created_at, updated_at
		 FROM event_mappings ORDER BY student, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list event mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*model.EventMapping
	for rows.Next() {
		m := &model.EventMapping{}
		if err := rows.Scan(&m.Student, &m.Slug, &m.EventID, &m.HTMLLink, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event mappings: %w", err)
	}

	return mappings, nil
}

// compile-time interface check
var _ MappingStore = (*PostgresMappingStore)(nil)
