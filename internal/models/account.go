package models

import "time"

// Role is the coarse capability tier of an account.
type Role string

const (
	RoleStandard Role = "standard"
	RoleManager  Role = "manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleManager
}

// Profile holds the ordinary, holder-editable attributes of an account.
type Profile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// ProfilePatch carries a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.DisplayName == nil && p.Email == nil && p.Phone == nil
}

// Apply merges the patch into a copy of profile and returns it.
func (p ProfilePatch) Apply(profile Profile) Profile {
	if p.DisplayName != nil {
		profile.DisplayName = *p.DisplayName
	}
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.Phone != nil {
		profile.Phone = *p.Phone
	}
	return profile
}

// Account represents one registered user.
type Account struct {
	ID             string    `json:"id"`
	LoginName      string    `json:"loginName"`
	CredentialHash string    `json:"-"` // Never expose this to the client
	Role           Role      `json:"role"`
	Profile        Profile   `json:"profile"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the account with the credential hash removed.
func (a Account) Sanitized() Account {
	a.CredentialHash = ""
	return a
}

// Principal is the identity making a call. The zero value is anonymous.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// IsAnonymous reports whether the principal carries no identity.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

// PrincipalFor builds the principal acting as the given account.
func PrincipalFor(a Account) Principal {
	return Principal{ID: a.ID, Role: a.Role}
}
