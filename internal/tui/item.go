package tui

import (
	"github.com/potwatch/potwatch/internal/models"
)

// BalanceItem wraps a BalanceEntry for display in the list
// Implements list.Item
type BalanceItem struct {
	Entry models.BalanceEntry
}

func (i BalanceItem) Title() string {
	if i.Entry.Name == "" {
		return "Account balance"
	}
	return i.Entry.Name
}

func (i BalanceItem) Description() string {
	return i.Entry.Balance
}

func (i BalanceItem) FilterValue() string {
	return i.Entry.Name + " " + i.Entry.Balance
}
