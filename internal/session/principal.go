package session

import "net/url"

// Profile is the provider-reported public profile of a user.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Principal is the authenticated user.
type Principal struct {
	ID      string  `json:"id"`
	Email   string  `json:"email"`
	Profile Profile `json:"profile"`
}

// AvatarURL returns the profile avatar, falling back to the code-hosting
// avatar of the username. It is empty when neither is known.
func (p Principal) AvatarURL() string {
	if p.Profile.Avatar != "" {
		return p.Profile.Avatar
	}
	if p.Profile.Username != "" {
		return "https://github.com/" + url.PathEscape(p.Profile.Username) + ".png"
	}
	return ""
}

// DisplayName returns the profile name, then the username, then the email.
func (p Principal) DisplayName() string {
	switch {
	case p.Profile.Name != "":
		return p.Profile.Name
	case p.Profile.Username != "":
		return p.Profile.Username
	}
	return p.Email
}
