package core

// Snapshot is the import/export wire format: a full copy of both collections.
// Import replaces everything; export is taken from the authoritative row set,
// so materialized occurrences never appear here.
type Snapshot struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// Validate checks every row in the snapshot before an import touches the
// store. Referential integrity is checked against the snapshot's own accounts.
func (s Snapshot) Validate() error {
	accounts := make(map[string]struct{}, len(s.Accounts))
	for _, a := range s.Accounts {
		if err := a.Validate(); err != nil {
			return err
		}
		accounts[a.ID] = struct{}{}
	}
	for _, t := range s.Transactions {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, ok := accounts[t.AccountID]; !ok {
			return ErrUnknownAccount
		}
	}
	return nil
}
