// Package homeassistant provides the Loom connector for the Home Assistant
// REST API. The connector retrieves entity states from /api/states and
// exposes two invocation surfaces:
//
//   - the full surface ([Adapter.Invoke]) used by an operator running the
//     component directly, accepting every declared field;
//   - a narrowed surface ([Adapter.Tool]) handed to autonomous agents, which
//     accepts only the optional filter_domain parameter. The access token
//     and base URL are bound at construction time and never exposed there.
package homeassistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// ID is the connector identifier in the registry.
const ID = "homeassistant"

// requestTimeout bounds the single /api/states call. Not retried.
const requestTimeout = 10 * time.Second

// Spec returns the connector's registration-time description.
func Spec() connector.Spec {
	return connector.Spec{
		ID:            ID,
		DisplayName:   "List Home Assistant States",
		Documentation: "https://developers.home-assistant.io/docs/api/rest/",
		Fields: []schema.Field{
			{
				Name:        "ha_token",
				DisplayName: "Home Assistant Token",
				Kind:        schema.KindSecret,
				Required:    true,
				Info:        "Home Assistant Long-Lived Access Token",
			},
			{
				Name:        "base_url",
				DisplayName: "Home Assistant URL",
				Kind:        schema.KindString,
				Required:    true,
				Info:        "e.g., http://192.168.0.10:8123",
			},
			{
				Name:        "filter_domain",
				DisplayName: "Default Filter Domain (Optional)",
				Kind:        schema.KindString,
				Info:        "light, switch, sensor, etc. (Leave empty to fetch all)",
			},
		},
	}
}

// Adapter is a Home Assistant connector instance bound to one credential set.
type Adapter struct {
	token         string
	baseURL       string
	defaultDomain string
	client        *http.Client
}

// New builds an [Adapter] from the declared field set. The required fields
// ha_token and base_url must be present; filter_domain provides an optional
// default filter applied when an invocation supplies none.
func New(in connector.Inputs) (*Adapter, error) {
	if err := in.Validate(Spec().Fields); err != nil {
		return nil, fmt.Errorf("homeassistant: %w", err)
	}
	return &Adapter{
		token:         in.String("ha_token"),
		baseURL:       strings.TrimRight(in.String("base_url"), "/"),
		defaultDomain: in.String("filter_domain"),
		client:        &http.Client{Timeout: requestTimeout},
	}, nil
}

// Factory adapts [New] to the registry's [connector.Factory] shape.
func Factory(in connector.Inputs) (connector.Adapter, error) {
	return New(in)
}

// Invoke implements [connector.Adapter]. It fetches states once, applies the
// domain filter from in (falling back to the configured default), and wraps
// the outcome into an envelope. Failures never escape as errors.
func (a *Adapter) Invoke(ctx context.Context, in connector.Inputs) *schema.Data {
	domain := a.defaultDomain
	if v, ok := in["filter_domain"]; ok {
		domain, _ = v.(string)
	}

	states, err := a.listStates(ctx, domain)
	if err != nil {
		return schema.FromError(fmt.Errorf("Failed to fetch states. %v", err))
	}
	return schema.FromList(states)
}

// Tool implements [connector.Narrower]. The returned tool declares only
// filter_domain; the handler closes over the adapter's bound credentials.
func (a *Adapter) Tool() connector.Tool {
	return connector.Tool{
		Name: "list_homeassistant_states",
		Description: "Retrieve states from Home Assistant. " +
			"You can provide filter_domain='light', 'switch', etc. to narrow results.",
		Parameters: connector.ParametersSchema([]schema.Field{
			{
				Name: "filter_domain",
				Kind: schema.KindString,
				Info: "Filter domain (e.g., 'light'). If empty, returns all.",
			},
		}),
		Handler: func(ctx context.Context, args connector.Inputs) *schema.Data {
			return a.Invoke(ctx, connector.Inputs{
				"filter_domain": args.String("filter_domain"),
			})
		},
	}
}

// listStates performs the GET {base_url}/api/states call and applies the
// optional domain prefix filter. All failure modes are classified with the
// connector error kinds so Invoke can render them uniformly.
func (a *Adapter) listStates(ctx context.Context, filterDomain string) ([]any, error) {
	url := a.baseURL + "/api/states"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", connector.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s returned %s", connector.ErrTransport, url, resp.Status)
	}

	var states []any
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, fmt.Errorf("%w: decode states: %v", connector.ErrUnexpectedFormat, err)
	}

	if filterDomain == "" {
		return states, nil
	}

	prefix := filterDomain + "."
	filtered := make([]any, 0, len(states))
	for _, st := range states {
		obj, ok := st.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := obj["entity_id"].(string); strings.HasPrefix(id, prefix) {
			filtered = append(filtered, st)
		}
	}
	return filtered, nil
}
