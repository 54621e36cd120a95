package chat

import (
	"sync"
	"time"
)

// Session 是持久化到会话存储中的匿名会话记录，只保存语言偏好。
type Session struct {
	ID                string    `json:"id"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Conversation 是单个会话在一次请求中的上下文，承载可变的语言偏好。
// 不同会话各自持有实例，互不争用；同一会话并发请求由内部锁保护。
type Conversation struct {
	ID string

	mu        sync.Mutex
	preferred string
	dirty     bool
}

// NewConversation 以已保存的偏好语言初始化会话上下文。
func NewConversation(id, preferred string) *Conversation {
	return &Conversation{ID: id, preferred: preferred}
}

// Preferred 返回当前偏好语言，nil 会话返回空串。
func (c *Conversation) Preferred() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preferred
}

// SetPreferred 更新偏好语言。空值与 "other" 不会覆盖已有偏好。
func (c *Conversation) SetPreferred(code string) {
	if c == nil || code == "" || code == "other" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preferred != code {
		c.preferred = code
		c.dirty = true
	}
}

// Dirty 表示偏好是否在本次请求中发生变化，需要写回存储。
func (c *Conversation) Dirty() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Snapshot 把当前状态折叠回 Session，用于写回存储。
func (c *Conversation) Snapshot(base Session) Session {
	base.ID = c.ID
	base.PreferredLanguage = c.Preferred()
	base.UpdatedAt = time.Now().UTC()
	return base
}
