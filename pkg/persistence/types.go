package persistence

import "sort"

// EncryptedKey holds a private key sealed with a password derived key.
// Byte fields are hex encoded.
type EncryptedKey struct {
	Cipher     string `json:"cipher"`
	CipherText string `json:"cipherText"`
	IV         string `json:"iv"`

	KDF     string `json:"kdf"`
	ScryptN int    `json:"scryptN"`
	ScryptR int    `json:"scryptR"`
	ScryptP int    `json:"scryptP"`
	DKLen   int    `json:"dkLen"`
	Salt    string `json:"salt"`

	MAC string `json:"mac"`
}

// KeyEntry is one stored account key.
type KeyEntry struct {
	ID        string       `json:"id"`
	Address   string       `json:"address"`
	Curve     string       `json:"curve"`
	PublicKey string       `json:"publicKey"`
	Label     string       `json:"label,omitempty"`
	Crypto    EncryptedKey `json:"crypto"`
	CreatedAt int64        `json:"createdAt"`
}

// SubmissionRecord tracks one pipeline run so its operation hash can be
// looked up again after a timeout.
type SubmissionRecord struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Branch        string   `json:"branch,omitempty"`
	OperationHash string   `json:"operationHash,omitempty"`
	State         string   `json:"state"`
	FailedAt      string   `json:"failedAt,omitempty"`
	Error         string   `json:"error,omitempty"`
	Kinds         []string `json:"kinds"`
	Counter       uint64   `json:"counter"`
	TotalFee      uint64   `json:"totalFee"`
	Polls         int      `json:"polls"`
	CreatedAt     int64    `json:"createdAt"`
	UpdatedAt     int64    `json:"updatedAt"`
}

// IsTerminal reports whether the recorded state can no longer change.
// A timed out submission may still be confirmed later.
func (r *SubmissionRecord) IsTerminal() bool {
	switch r.State {
	case "confirmed", "refused", "failed":
		return true
	}
	return false
}

func CopyKeyEntry(e *KeyEntry) *KeyEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

func CopySubmissionRecord(r *SubmissionRecord) *SubmissionRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Kinds != nil {
		c.Kinds = append([]string(nil), r.Kinds...)
	}
	return &c
}

func SortKeyEntries(entries []*KeyEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Address < entries[j].Address
	})
}

func SortSubmissions(records []*SubmissionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}
