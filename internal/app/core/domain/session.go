package domain

import "github.com/google/uuid"

// Session 登入成功後取得的憑證，之後每個操作都要帶著它。
// 欄位不公開，只能透過 NewSession 由驗證服務建立。
type Session struct {
	id       uuid.UUID
	username string
}

func NewSession(username string) Session {
	return Session{id: uuid.New(), username: NormalizeUsername(username)}
}

func (s Session) ID() uuid.UUID { return s.id }

func (s Session) Username() string { return s.username }

// IsZero 未登入的零值
func (s Session) IsZero() bool { return s.id == uuid.Nil }
