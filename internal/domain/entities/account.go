package entities

// GitHubConfig holds the credentials and remote document id for a session.
type GitHubConfig struct {
	Token  string `json:"token"`
	GistID string `json:"gistId"`
}

// LoggedIn reports whether both the token and the gist id are present.
func (c GitHubConfig) LoggedIn() bool {
	return c.Token != "" && c.GistID != ""
}

// UserProfile is the identity returned by the remote account service.
type UserProfile struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName prefers the full name and falls back to the login.
func (p UserProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}
