// Package openai provides an EventCompleter implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

const eventShape = `Each event has:
- title: the commonly used name of the event
- description: one or two sentences
- dateStr: "YYYY-MM-DD", "YYYY-MM" or "YYYY"; use a negative year for BCE, e.g. "-221"
- location: {"lat": decimal latitude, "lng": decimal longitude, "name": place name}

Return ONLY a JSON object of the form {"events": [...]}, no other text.`

const namesPrompt = `You are a historian. For each event name the user lists, one per line,
return the matching historical event. Skip names you cannot identify.

` + eventShape + `

Example:
Input: "Battle of Red Cliffs"
Output: {"events": [
  {"title": "Battle of Red Cliffs", "description": "Allied forces of Sun Quan and Liu Bei defeat Cao Cao.", "dateStr": "208-12", "location": {"lat": 29.87, "lng": 113.62, "name": "Chibi"}}
]}`

const searchPrompt = `You are a historian. The user describes a topic, period or place.
Return the most significant historical events related to it, at most 10.

` + eventShape

// Client implements the EventCompleter interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

var _ ports.EventCompleter = (*Client)(nil)

// NewClient creates a new OpenAI completion client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// CompleteNames returns one event per recognized name.
func (c *Client) CompleteNames(ctx context.Context, names []string) ([]entities.Event, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return c.complete(ctx, namesPrompt, strings.Join(names, "\n"))
}

// Search returns events related to a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]entities.Event, error) {
	return c.complete(ctx, searchPrompt, query)
}

func (c *Client) complete(ctx context.Context, system, user string) ([]entities.Event, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("empty response from OpenAI")
	}

	rawEvents, err := decodeEvents(content)
	if err != nil {
		return nil, fmt.Errorf("parsing events JSON: %w (response: %s)", err, content)
	}

	events := make([]entities.Event, 0, len(rawEvents))
	for _, re := range rawEvents {
		events = append(events, re.toEntity())
	}
	return events, nil
}

// rawEvent is the JSON structure the model returns. Fields are loosely
// typed because models sometimes emit years and coordinates as numbers or
// strings interchangeably.
type rawEvent struct {
	ID          any `json:"id"`
	Title       any `json:"title"`
	Description any `json:"description"`
	DateStr     any `json:"dateStr"`
	Location    struct {
		Lat  any `json:"lat"`
		Lng  any `json:"lng"`
		Name any `json:"name"`
	} `json:"location"`
}

func (r rawEvent) toEntity() entities.Event {
	return entities.Event{
		ID:          valueToString(r.ID),
		Title:       valueToString(r.Title),
		Description: valueToString(r.Description),
		DateStr:     valueToString(r.DateStr),
		Location: entities.Location{
			Lat:  valueToFloat(r.Location.Lat),
			Lng:  valueToFloat(r.Location.Lng),
			Name: valueToString(r.Location.Name),
		},
	}
}

// decodeEvents accepts the requested {"events": [...]} object or, from
// servers that ignore the response format, a bare array.
func decodeEvents(content string) ([]rawEvent, error) {
	var events []rawEvent
	if strings.HasPrefix(content, "{") {
		var wrapped struct {
			Events []rawEvent `json:"events"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Events, nil
	}
	if err := json.Unmarshal([]byte(content), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// valueToString converts a loosely typed JSON value to string.
func valueToString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// valueToFloat converts a loosely typed JSON value to a float, 0 if unreadable.
func valueToFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
