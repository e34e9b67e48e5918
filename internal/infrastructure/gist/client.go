// Package gist stores the event collection in a private GitHub gist.
package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

const listPageSize = 100

// Client implements ports.DocumentStore and ports.IdentityProvider.
// The token is supplied per call so one client serves any session.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	filename    string
	description string
}

var (
	_ ports.DocumentStore    = (*Client)(nil)
	_ ports.IdentityProvider = (*Client)(nil)
)

// NewClient creates a gist client. An empty APIURL uses api.github.com.
func NewClient(cfg config.GitHubConfig, httpClient *http.Client) (*Client, error) {
	if cfg.GistFilename == "" {
		return nil, errors.New("gist filename is required")
	}
	c := &Client{
		httpClient:  httpClient,
		filename:    cfg.GistFilename,
		description: cfg.GistDescription,
	}
	if cfg.APIURL != "" {
		raw := cfg.APIURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing github api url: %w", err)
		}
		c.baseURL = u
	}
	return c, nil
}

func (c *Client) api(token string) *github.Client {
	gh := github.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return gh
}

// Profile returns the account that owns token.
func (c *Client) Profile(ctx context.Context, token string) (*entities.UserProfile, error) {
	user, _, err := c.api(token).Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}
	return &entities.UserProfile{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// FindOrCreate returns the id of the gist whose description matches, or
// creates a private one holding an empty array.
func (c *Client) FindOrCreate(ctx context.Context, token string) (string, error) {
	gh := c.api(token)

	opts := &github.GistListOptions{ListOptions: github.ListOptions{PerPage: listPageSize}}
	for {
		gists, resp, err := gh.Gists.List(ctx, "", opts)
		if err != nil {
			return "", fmt.Errorf("listing gists: %w", err)
		}
		for _, g := range gists {
			if g.GetDescription() == c.description {
				return g.GetID(), nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	created, _, err := gh.Gists.Create(ctx, &github.Gist{
		Description: github.String(c.description),
		Public:      github.Bool(false),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(c.filename): {Content: github.String("[]")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating gist: %w", err)
	}
	return created.GetID(), nil
}

// Read returns the events stored in the gist. A missing file or blank
// content is an empty collection; content that is not an event array is an
// error so a later write cannot clobber data we failed to understand.
func (c *Client) Read(ctx context.Context, token, gistID string) ([]entities.Event, error) {
	g, _, err := c.api(token).Gists.Get(ctx, gistID)
	if err != nil {
		return nil, fmt.Errorf("fetching gist %s: %w", gistID, err)
	}

	file, ok := g.Files[github.GistFilename(c.filename)]
	if !ok {
		return []entities.Event{}, nil
	}
	content := strings.TrimSpace(file.GetContent())
	if content == "" {
		return []entities.Event{}, nil
	}

	// Unlike a missing file, unreadable content is an error: reading it as
	// empty would let the next sync overwrite the document.
	var events []entities.Event
	if err := json.Unmarshal([]byte(content), &events); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.filename, err)
	}
	if events == nil {
		events = []entities.Event{}
	}
	return events, nil
}

// Write replaces the gist file with events.
func (c *Client) Write(ctx context.Context, token, gistID string, events []entities.Event) error {
	if events == nil {
		events = []entities.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	_, _, err = c.api(token).Gists.Edit(ctx, gistID, &github.Gist{
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(c.filename): {Content: github.String(string(data))},
		},
	})
	if err != nil {
		return fmt.Errorf("updating gist %s: %w", gistID, err)
	}
	return nil
}
