package domain

// Identity is the result of verifying a session token. It lives for one request.
type Identity struct {
	UserID UserID
	// Email is empty when the token carries no email claim.
	Email string
}

// Profile is the user-facing profile row kept next to the identity provider's user record.
type Profile struct {
	UserID         UserID
	Email          string
	Name           *string
	DisplayName    *string
	EmailConfirmed bool
}

// DisplayNameOrDefault returns the best human label for the profile.
func (p Profile) DisplayNameOrDefault() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return EmailLocalPart(p.Email)
}
