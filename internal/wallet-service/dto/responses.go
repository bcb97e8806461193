package dto

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

type TransferResponse struct {
	FromBalanceCents int64 `json:"from_balance_cents"`
	ToBalanceCents   int64 `json:"to_balance_cents"`
	DebitEntryID     int64 `json:"debit_entry_id"`
	CreditEntryID    int64 `json:"credit_entry_id"`
	Replayed         bool  `json:"replayed"`
}
