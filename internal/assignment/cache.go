package assignment

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/classcal/internal/model"
)

// Lister は課題一覧の上流取得インターフェース。
type Lister interface {
	// ListAssignments はClassroomの課題一覧を上流の返却順で取得する。
	ListAssignments(ctx context.Context) ([]*model.AssignmentDefinition, error)
}

// Cache は課題一覧の時間制限付きキャッシュ。
// 鮮度窓内の読み取りはキャッシュ済み一覧を返し、窓を過ぎた読み取りは
// 上流を再取得して一覧と取得時刻をアトミックに置き換える。
// 上流取得の失敗は呼び出し元に伝播する（stale配信へのフォールバックはしない。
// オーケストレータが次回スイープで再試行する設計のため、fail-fastを選ぶ）。
type Cache struct {
	lister Lister
	ttl    time.Duration

	mu          sync.Mutex
	assignments []*model.AssignmentDefinition
	fetchedAt   time.Time

	now func() time.Time // テスト用に差し替え可能
}

// NewCache はCacheを生成する。ttlが0以下の場合はデフォルトの600秒を使用する。
func NewCache(lister Lister, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	return &Cache{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetAssignments は課題一覧を返す。
// now - fetchedAt < ttl の場合はキャッシュを返し、上流呼び出しを行わない。
// 窓を過ぎている場合は上流を呼び出し、成功時のみキャッシュを置き換える。
func (c *Cache) GetAssignments(ctx context.Context) ([]*model.AssignmentDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.assignments, nil
	}

	assignments, err := c.lister.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}

	c.assignments = assignments
	c.fetchedAt = c.now()
	return c.assignments, nil
}

// Invalidate はキャッシュを無効化し、次回読み取りで上流を再取得させる。
// デバッグ用の手動トリガーから使用される。
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// Snapshot は現在キャッシュされている一覧と取得時刻を返す。
// 上流呼び出しは行わない。デバッグ用の読み取り専用ビュー。
func (c *Cache) Snapshot() ([]*model.AssignmentDefinition, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assignments, c.fetchedAt
}
