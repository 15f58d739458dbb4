package oauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StateStore 保存已签发的OAuth state, 每个state只能使用一次
type StateStore struct {
	states *expirable.LRU[string, struct{}]
}

// NewStateStore size为最多同时进行中的登录数
func NewStateStore(size int, ttl time.Duration) *StateStore {
	return &StateStore{states: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Issue 生成新的state
func (s *StateStore) Issue() string {
	state := uuid.NewString()
	s.states.Add(state, struct{}{})
	return state
}

// Consume 校验并作废state
func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}
	// Get 会过滤已过期的state
	if _, ok := s.states.Get(state); !ok {
		return false
	}
	// 并发回调只有一个能删除成功
	return s.states.Remove(state)
}
