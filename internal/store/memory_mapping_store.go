package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/classcal/internal/model"
)

// mappingKey はMemoryMappingStoreの複合キー。
type mappingKey struct {
	student string
	slug    string
}

// MemoryMappingStore はMappingStoreのプロセス内メモリ実装。
// mapのキーが（学生, スラグ）ペアそのものであるため、
// 同一ペアのエントリが2件以上になることは構造的にない。
type MemoryMappingStore struct {
	mu       sync.RWMutex
	mappings map[mappingKey]*model.EventMapping
}

// NewMemoryMappingStore はMemoryMappingStoreを生成する。
func NewMemoryMappingStore() *MemoryMappingStore {
	return &MemoryMappingStore{
		mappings: make(map[mappingKey]*model.EventMapping),
	}
}

// Find は指定ペアのマッピングを取得する。見つからない場合はnilを返す。
func (s *MemoryMappingStore) Find(ctx context.Context, student, slug string) (*model.EventMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[mappingKey{student: student, slug: slug}]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

// Save はマッピングを保存する。同一ペアの既存エントリは上書きされる。
func (s *MemoryMappingStore) Save(ctx context.Context, mapping *model.EventMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *mapping
	s.mappings[mappingKey{student: mapping.Student, slug: mapping.Slug}] = &m
	return nil
}

// List は全マッピングを学生名・スラグ順で返す。
func (s *MemoryMappingStore) List(ctx context.Context) ([]*model.EventMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappings := make([]*model.EventMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		c := *m
		mappings = append(mappings, &c)
	}
	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].Student != mappings[j].Student {
			return mappings[i].Student < mappings[j].Student
		}
		return mappings[i].Slug < mappings[j].Slug
	})
	return mappings, nil
}

// compile-time interface check
var _ MappingStore = (*MemoryMappingStore)(nil)
