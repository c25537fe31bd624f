package entities

import "time"

// Identity is a signed-in account as reported by the identity service.
type Identity struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SameAs reports whether two identities denote the same account. Two nil
// identities are the same.
func (i *Identity) SameAs(other *Identity) bool {
	if i == nil || other == nil {
		return i == nil && other == nil
	}
	return i.UID == other.UID
}
