package domain

// Account is a persistence snapshot of one ledger account. The live ledger
// keeps this data as map entries; the snapshot form exists for the store
// layer and for read aggregation.
type Account struct {
	Address        string           `json:"address"`
	Balance        int64            `json:"balance"`
	AirdropClaimed bool             `json:"airdrop_claimed"`
	Allowances     map[string]int64 `json:"allowances,omitempty"` // spender -> amount
}

// OwnedClaim is a claim enriched with its current listing price, if any.
type OwnedClaim struct {
	Claim  Claim `json:"claim"`
	Listed bool  `json:"listed"`
	Price  int64 `json:"price,omitempty"`
}

// UserInfo is the aggregated per-account view: balance, every owned claim
// with its listing state, and the grant flag. Served to the wallet UI in one
// consistent snapshot.
type UserInfo struct {
	Account        string       `json:"account"`
	Balance        int64        `json:"balance"`
	AirdropClaimed bool         `json:"airdrop_claimed"`
	Claims         []OwnedClaim `json:"claims"`
}
