package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// legacyDocument 舊版 ATM 程式的格式: 以 index 對應的平行陣列 + 文字紀錄
type legacyDocument struct {
	Users              []string            `json:"users"`
	Pins               []string            `json:"pins"`
	Amounts            []int64             `json:"amounts"`
	TransactionHistory map[string][]string `json:"transaction_history"`
}

// IsLegacy 判斷內容是否為舊版格式
func IsLegacy(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	_, hasUsers := fields["users"]
	_, hasPins := fields["pins"]
	_, hasAccounts := fields["accounts"]
	return hasUsers && hasPins && !hasAccounts
}

// SkippedLine 無法解析、匯入時略過的舊版紀錄
type SkippedLine struct {
	Username string
	Line     string
}

// UnmarshalLegacy 轉換舊版格式。PIN 以 hash 函式重新雜湊；
// 看不懂的紀錄文字會略過並回傳給呼叫端記錄。
//
// 參數:
//
//	data: 舊版 JSON
//	hash: PIN 雜湊函式
//
// 回傳:
//
//	*domain.Snapshot: 轉換後的快照
//	[]SkippedLine: 略過的紀錄
//	error: 陣列長度不一致、名稱重複、餘額為負等無法修復的錯誤
func UnmarshalLegacy(data []byte, hash func(pin string) (string, error)) (*domain.Snapshot, []SkippedLine, error) {
	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(doc.Users) != len(doc.Pins) || len(doc.Users) != len(doc.Amounts) {
		return nil, nil, fmt.Errorf("%w: legacy arrays out of sync (users=%d pins=%d amounts=%d)",
			ErrCorrupt, len(doc.Users), len(doc.Pins), len(doc.Amounts))
	}

	snap := &domain.Snapshot{Accounts: make([]domain.Account, 0, len(doc.Users))}
	var skipped []SkippedLine
	seen := make(map[string]struct{}, len(doc.Users))
	for i, user := range doc.Users {
		name := domain.NormalizeUsername(user)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: empty legacy username at index %d", ErrCorrupt, i)
		}
		if _, dup := seen[name]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate legacy username %q", ErrCorrupt, name)
		}
		seen[name] = struct{}{}
		if doc.Amounts[i] < 0 {
			return nil, nil, fmt.Errorf("%w: negative legacy balance for %q", ErrCorrupt, name)
		}
		secret, err := hash(doc.Pins[i])
		if err != nil {
			return nil, nil, fmt.Errorf("hash legacy pin for %q: %w", name, err)
		}

		history := make([]domain.TransactionRecord, 0, len(doc.TransactionHistory[user]))
		for _, line := range doc.TransactionHistory[user] {
			rec, ok := parseLegacyLine(line)
			if !ok {
				skipped = append(skipped, SkippedLine{Username: name, Line: line})
				continue
			}
			history = append(history, rec)
		}
		snap.Accounts = append(snap.Accounts, domain.Account{
			Username: name,
			Secret:   secret,
			Balance:  doc.Amounts[i],
			History:  history,
		})
	}
	return snap, skipped, nil
}

// parseLegacyLine 解析舊版的紀錄文字，例如 "Withdrawn: 2000"、"Transferred 1000 to bob"
func parseLegacyLine(line string) (domain.TransactionRecord, bool) {
	var (
		amount int64
		who    string
		rec    domain.TransactionRecord
	)
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "Withdrawn:"):
		if _, err := fmt.Sscanf(line, "Withdrawn: %d", &amount); err != nil {
			return rec, false
		}
		rec.Kind = domain.KindWithdrawal
	case strings.HasPrefix(line, "Deposited:"):
		if _, err := fmt.Sscanf(line, "Deposited: %d", &amount); err != nil {
			return rec, false
		}
		rec.Kind = domain.KindDeposit
	case strings.HasPrefix(line, "Transferred "):
		if _, err := fmt.Sscanf(line, "Transferred %d to %s", &amount, &who); err != nil {
			return rec, false
		}
		rec.Kind = domain.KindTransferOut
	case strings.HasPrefix(line, "Received "):
		if _, err := fmt.Sscanf(line, "Received %d from %s", &amount, &who); err != nil {
			return rec, false
		}
		rec.Kind = domain.KindTransferIn
	default:
		return rec, false
	}
	// 舊版沒有擋負數金額，這種紀錄無法轉成合法的 TransactionRecord
	if amount <= 0 {
		return domain.TransactionRecord{}, false
	}
	rec.Amount = amount
	rec.Counterparty = domain.NormalizeUsername(who)
	return rec, true
}
