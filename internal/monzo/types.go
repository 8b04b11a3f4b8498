package monzo

import "time"

// Account is one entry of the accounts listing
type Account struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// Balance is the raw minor-unit balance of an account
type Balance struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Pot is a single Monzo pot. Balance is in minor units of Currency. Deleted
// pots stay in the listing and have to be filtered by the caller.
type Pot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Balance       int64  `json:"balance"`
	Currency      string `json:"currency"`
	Deleted       bool   `json:"deleted"`
	CoverImageURL string `json:"cover_image_url"`
}

type potsResponse struct {
	Pots []Pot `json:"pots"`
}
