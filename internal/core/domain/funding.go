package domain

// FundingState is the service's view of the last address it handed out for
// a subaccount. It must be queried every time, never cached.
type FundingState struct {
	AddrType   string `json:"addr_type"`
	Branch     uint16 `json:"branch"`
	Pointer    uint32 `json:"pointer"`
	Script     string `json:"script"`
	Subaccount uint16 `json:"subaccount"`
}

// Covers returns whether the address at the given index has been handed out
// by the service already.
func (s FundingState) Covers(index uint32) bool {
	return index <= s.Pointer
}
