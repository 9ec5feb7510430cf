package domain

// Snapshot 帳本的完整狀態，帳戶依註冊順序排列
type Snapshot struct {
	Accounts []Account
}

// Empty 首次啟動或檔案損毀時使用
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Accounts) == 0
}
