// Package musicplatform is a hand-rolled GraphQL client for the music
// platform (Soundtrack Your Brand-shaped) used to discover accounts/zones and
// bind schedules at approval time. No GraphQL client library appears
// anywhere in the retrieved pack, so requests are built and decoded by hand
// over plain net/http, following the same constructor-plus-context-plus-
// circuit-breaker shape as the other adapters in this package.
package musicplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brightears/bmasia-music-brief/pkg/circuit"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// Account is one customer account on the platform.
type Account struct {
	ID   string
	Name string
}

// Zone is one sound zone under an account.
type Zone struct {
	ID   string
	Name string
}

// ScheduleSlot is one RRULE-shaped weekly slot, per spec §6.2's wire format.
type ScheduleSlot struct {
	RRule       string
	Start       string // HHMMSS local wall clock
	DurationMs  int64
	PlaylistIDs []string
}

// Client talks to the music platform's GraphQL endpoint.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	cb         *circuit.Breaker
}

// New constructs a musicplatform Client.
func New(token, baseURL string) *Client {
	cb := circuit.New(circuit.Config{
		Name:              "musicplatform",
		OperationTimeout:  10 * time.Second,
		OpenFor:           20 * time.Second,
		MaxConsecFailures: 3,
		WindowSize:        10,
		FailureRate:       0.6,
	}, nil)
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	return c.cb.Do(ctx, func(ctx context.Context) error {
		body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
		if err != nil {
			return errs.NewExternal("musicplatform.do", "musicplatform", "failed to encode request", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return errs.NewExternal("musicplatform.do", "musicplatform", "failed to build request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Basic "+c.token)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return errs.NewExternal("musicplatform.do", "musicplatform", "request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errs.NewExternal("musicplatform.do", "musicplatform", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		}

		var parsed gqlResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return errs.NewExternal("musicplatform.do", "musicplatform", "failed to decode response", err)
		}
		if len(parsed.Errors) > 0 {
			return errs.NewExternal("musicplatform.do", "musicplatform", parsed.Errors[0].Message, nil)
		}
		if out != nil {
			if err := json.Unmarshal(parsed.Data, out); err != nil {
				return errs.NewExternal("musicplatform.do", "musicplatform", "failed to decode data payload", err)
			}
		}
		return nil
	}, nil)
}

// AccountsPage fetches one page of accounts. An empty cursor fetches the
// first page. hasNext is false once the final page has been returned.
func (c *Client) AccountsPage(ctx context.Context, cursor string) (accounts []Account, nextCursor string, hasNext bool, err error) {
	const query = `query($cursor: String) {
		accounts(cursor: $cursor) {
			pageInfo { endCursor hasNextPage }
			edges { node { id businessName } }
		}
	}`
	var data struct {
		Accounts struct {
			PageInfo struct {
				EndCursor   string `json:"endCursor"`
				HasNextPage bool   `json:"hasNextPage"`
			} `json:"pageInfo"`
			Edges []struct {
				Node struct {
					ID           string `json:"id"`
					BusinessName string `json:"businessName"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"accounts"`
	}
	vars := map[string]any{}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	if err := c.do(ctx, query, vars, &data); err != nil {
		return nil, "", false, err
	}
	accounts = make([]Account, 0, len(data.Accounts.Edges))
	for _, e := range data.Accounts.Edges {
		accounts = append(accounts, Account{ID: e.Node.ID, Name: e.Node.BusinessName})
	}
	return accounts, data.Accounts.PageInfo.EndCursor, data.Accounts.PageInfo.HasNextPage, nil
}

// Zones fetches the zones configured under an account.
func (c *Client) Zones(ctx context.Context, accountID string) ([]Zone, error) {
	const query = `query($id: ID!) {
		account(id: $id) { soundZones { id name } }
	}`
	var data struct {
		Account struct {
			SoundZones []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"soundZones"`
		} `json:"account"`
	}
	if err := c.do(ctx, query, map[string]any{"id": accountID}, &data); err != nil {
		return nil, err
	}
	out := make([]Zone, 0, len(data.Account.SoundZones))
	for _, z := range data.Account.SoundZones {
		out = append(out, Zone{ID: z.ID, Name: z.Name})
	}
	return out, nil
}

// CreateSchedule creates a named schedule of RRULE-shaped slots owned by an
// account, per spec §4.5: `createSchedule({ownerId,...})` is account-scoped,
// not zone-scoped -- one schedule covers every zone it is later bound to via
// SoundZoneAssignSource. Failure here is non-fatal to approval: callers fall
// back to manual assignment when it errors.
func (c *Client) CreateSchedule(ctx context.Context, ownerID, name, description string, slots []ScheduleSlot) (scheduleID string, err error) {
	const mutation = `mutation($ownerId: ID!, $name: String!, $description: String!, $slots: [ScheduleSlotInput!]!) {
		createSchedule(ownerId: $ownerId, name: $name, description: $description, presentAs: "daily", slots: $slots) {
			schedule { id }
		}
	}`
	slotInputs := make([]map[string]any, 0, len(slots))
	for _, s := range slots {
		slotInputs = append(slotInputs, map[string]any{
			"rrule":       s.RRule,
			"start":       s.Start,
			"duration":    s.DurationMs,
			"playlistIds": s.PlaylistIDs,
		})
	}
	var data struct {
		CreateSchedule struct {
			Schedule struct {
				ID string `json:"id"`
			} `json:"schedule"`
		} `json:"createSchedule"`
	}
	vars := map[string]any{
		"ownerId":     ownerID,
		"name":        name,
		"description": description,
		"slots":       slotInputs,
	}
	if err := c.do(ctx, mutation, vars, &data); err != nil {
		return "", err
	}
	return data.CreateSchedule.Schedule.ID, nil
}

// AddToMusicLibrary adds a playlist to the account's library. Best-effort:
// a failure here never blocks schedule creation, since zones can play a
// playlist without it having been explicitly added to the library first.
func (c *Client) AddToMusicLibrary(ctx context.Context, accountID, playlistID string) error {
	const mutation = `mutation($accountId: ID!, $playlistId: ID!) {
		addToMusicLibrary(accountId: $accountId, playlistId: $playlistId) { success }
	}`
	return c.do(ctx, mutation, map[string]any{"accountId": accountID, "playlistId": playlistID}, nil)
}

// SoundZoneAssignSource assigns a schedule (or playlist) as a zone's active
// source. Used both at approval time (failure there surfaces a 5xx approval
// error) and by the executor on each tick (failure there is retried up to 3
// times before the entry is marked in error).
func (c *Client) SoundZoneAssignSource(ctx context.Context, zoneID, sourceID string) error {
	const mutation = `mutation($zoneId: ID!, $sourceId: ID!) {
		soundZoneAssignSource(soundZoneId: $zoneId, sourceId: $sourceId) { success }
	}`
	return c.do(ctx, mutation, map[string]any{"zoneId": zoneID, "sourceId": sourceID}, nil)
}
