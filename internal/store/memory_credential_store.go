package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/classcal/internal/model"
)

// MemoryCredentialStore はCredentialStoreのプロセス内メモリ実装。
// プロセス再起動で内容は失われる（参照実装と同じ揮発性の挙動）。
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*model.Credential
}

// NewMemoryCredentialStore はMemoryCredentialStoreを生成する。
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string]*model.Credential),
	}
}

// Find は指定学生の資格情報を取得する。見つからない場合はnilを返す。
func (s *MemoryCredentialStore) Find(ctx context.Context, student string) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[student]
	if !ok {
		return nil, nil
	}
	// 呼び出し元の変更が内部状態に波及しないようコピーを返す
	c := *cred
	return &c, nil
}

// Save は資格情報を保存する。同一学生の既存エントリは上書きされる。
func (s *MemoryCredentialStore) Save(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cred
	s.creds[cred.Student] = &c
	return nil
}

// ListStudents は資格情報が登録されている学生の一覧をソート順で返す。
func (s *MemoryCredentialStore) ListStudents(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	students := make([]string, 0, len(s.creds))
	for student := range s.creds {
		students = append(students, student)
	}
	sort.Strings(students)
	return students, nil
}

// compile-time interface check
var _ CredentialStore = (*MemoryCredentialStore)(nil)
