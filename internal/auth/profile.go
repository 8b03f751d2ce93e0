package auth

import "strings"

const anonymousName = "Anonymous"

// Profile is what the identity provider knows about a caller.
type Profile struct {
	UserID    string
	FirstName string
	LastName  string
	Username  string
	Email     string
	AvatarURL string
}

// DisplayName resolves the name stamped on a comment: full name, then
// username, then email, then "Anonymous". A full name needs both parts.
func DisplayName(p Profile) string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if username := strings.TrimSpace(p.Username); username != "" {
		return username
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		return email
	}
	return anonymousName
}
