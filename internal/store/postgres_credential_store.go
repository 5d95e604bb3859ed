package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/classcal/internal/model"
)

// PostgresCredentialStore はPostgreSQLを使用した資格情報ストア。
// 複数プロセス（serve + worker）で状態を共有する場合に使用する。
type PostgresCredentialStore struct {
	db *sql.DB
}

// NewPostgresCredentialStore はPostgresCredentialStoreを生成する。
func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

// Find は指定学生の資格情報を取得する。見つからない場合はnilを返す。
func (s *PostgresCredentialStore) Find(ctx context.Context, student string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := s.db.QueryRowContext(ctx,
		`SELECT student, access_token, refresh_token, expiry, updated_at
		 FROM credentials WHERE student = $1`,
		student,
	).Scan(&cred.Student, &cred.AccessToken, &cred.RefreshToken, &cred.Expiry, &cred.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// Save は資格情報をUPSERTする。同一学生の既存エントリは上書きされる。
func (s *PostgresCredentialStore) Save(ctx context.Context, cred *model.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (student, access_token, refresh_token, expiry, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (student) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expiry = EXCLUDED.expiry,
		   updated_at = EXCLUDED.updated_at`,
		cred.Student, cred.AccessToken, cred.RefreshToken, cred.Expiry, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// ListStudents は資格情報が登録されている学生の一覧を返す。
func (s *PostgresCredentialStore) ListStudents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student FROM credentials ORDER BY student`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []string
	for rows.Next() {
		var student string
		if err := rows.Scan(&student); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}

// compile-time interface check
var _ CredentialStore = (*PostgresCredentialStore)(nil)
