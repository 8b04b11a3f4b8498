package models

// BalanceEntry is one row of the balance report served by /balances and
// rendered by the terminal dashboard. Name and CoverImageURL are empty for
// whole-account entries.
type BalanceEntry struct {
	Name          string `json:"name,omitempty"`
	Balance       string `json:"balance"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}
