package reconcile

import "sync"

// KeyedMutex はキー単位の相互排他を提供する。
// 「マッピングを確認してから作成または更新する」列は、
// 同一の（学生, スラグ）ペアに対してWebhook経路とスイープ経路が
// 同時に走るとチェックと実行の競合になるため、ペアごとに直列化する。
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex はKeyedMutexを生成する。
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock は指定キーのロックを取得する。
func (k *KeyedMutex) Lock(key string) {
	k.lockFor(key).Lock()
}

// Unlock は指定キーのロックを解放する。
func (k *KeyedMutex) Unlock(key string) {
	k.lockFor(key).Unlock()
}

// lockFor はキーに対応するロックを取得または作成する。
// エントリは解放されない（既知のペア数は学生数×課題数で有界）。
func (k *KeyedMutex) lockFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}
