package models

// Owner scopes records to one user of one tenant.
type Owner struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
}

// DocumentRef identifies a StatusRecord.
type DocumentRef struct {
	Owner
	Key string `json:"documentKey"`
}

// Identity is a signed-in session, guest or permanent.
type Identity struct {
	Owner
	IsGuest bool `json:"isGuest"`
}

// Upgrade returns the permanent identity linked from a guest one. The ids are kept, so
// existing records stay with the identity.
func (i Identity) Upgrade() Identity {
	i.IsGuest = false
	return i
}
