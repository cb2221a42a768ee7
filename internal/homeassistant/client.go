// Package homeassistant provides clients for the Home Assistant REST and
// WebSocket APIs.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/httpkit"
	"github.com/Brent1981/AIProject/internal/metrics"
)

// ErrNotConfigured is returned without touching the network when the
// client has no access token.
var ErrNotConfigured = errors.New("home assistant API access is not configured")

// NotConfiguredText is the user-facing form of ErrNotConfigured.
const NotConfiguredText = "Error: Addon is not configured with API access."

// Per-call deadlines.
const (
	stateTimeout    = 10 * time.Second
	serviceTimeout  = 10 * time.Second
	templateTimeout = 15 * time.Second
	historyTimeout  = 15 * time.Second
)

// Client is a Home Assistant REST API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a Home Assistant client. baseURL is the instance
// address without the /api suffix. An empty token yields a client whose
// every call returns ErrNotConfigured.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...httpkit.ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpkit.NewClient(append([]httpkit.ClientOption{httpkit.WithTimeout(30 * time.Second)}, opts...)...),
		logger:     logger.With("component", "homeassistant"),
	}
}

// SetMetrics attaches a metrics sink for call latency.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// BaseURL returns the configured instance address.
func (c *Client) BaseURL() string { return c.baseURL }

// Configured reports whether the client holds a token.
func (c *Client) Configured() bool { return c.token != "" }

// State represents an entity state from Home Assistant.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// FriendlyName returns the friendly_name attribute, or the entity ID
// when the attribute is absent.
func (s State) FriendlyName() string {
	if fn, ok := s.Attributes["friendly_name"].(string); ok && fn != "" {
		return fn
	}
	return s.EntityID
}

// Domain returns the part of the entity ID before the first dot.
func (s State) Domain() string {
	domain, _, _ := SplitEntityID(s.EntityID)
	return domain
}

// Config is the subset of /api/config AXIOM reads.
type Config struct {
	LocationName string `json:"location_name"`
	TimeZone     string `json:"time_zone"`
	Version      string `json:"version"`
}

// AreaEntity is one member of an area in the area map.
type AreaEntity struct {
	EntityID     string `json:"entity_id"`
	FriendlyName string `json:"friendly_name"`
}

// AreaMap maps area names to the entities assigned to them.
type AreaMap map[string][]AreaEntity

// areaTemplate renders every area with its entities as JSON.
const areaTemplate = `{% set ns = namespace(areas={}) %}
{% for entity in states %}
  {% set area = area_name(entity.entity_id) %}
  {% if area %}
    {% if area not in ns.areas %}
      {% set ns.areas = ns.areas | combine({area: []}) %}
    {% endif %}
    {% set entity_info = {'entity_id': entity.entity_id, 'friendly_name': entity.attributes.friendly_name} %}
    {% set ns.areas = ns.areas | combine({area: ns.areas[area] + [entity_info]}) %}
  {% endif %}
{% endfor %}
{{ ns.areas | tojson }}`

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, "ping", http.MethodGet, "/api/", nil, &status, stateTimeout); err != nil {
		return err
	}
	if status.Message != "API running." {
		return fmt.Errorf("unexpected API status: %s", status.Message)
	}
	return nil
}

// GetConfig retrieves the Home Assistant configuration.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.do(ctx, "get_config", http.MethodGet, "/api/config", nil, &cfg, stateTimeout); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TimeZone returns the home's configured location, falling back to UTC
// when the configuration can't be read or names an unknown zone.
func (c *Client) TimeZone(ctx context.Context) *time.Location {
	cfg, err := c.GetConfig(ctx)
	if err != nil || cfg.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		c.logger.Warn("unknown home time zone, using UTC", "time_zone", cfg.TimeZone)
		return time.UTC
	}
	return loc
}

// GetStates retrieves the full state snapshot.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.do(ctx, "get_states", http.MethodGet, "/api/states", nil, &states, stateTimeout); err != nil {
		return nil, err
	}
	return states, nil
}

// CallService invokes service ("domain.action") once against all targets.
// params are merged into the request body next to entity_id.
func (c *Client) CallService(ctx context.Context, service string, targets []string, params map[string]any) error {
	domain, action, err := SplitService(service)
	if err != nil {
		return err
	}

	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	switch len(targets) {
	case 0:
	case 1:
		payload["entity_id"] = targets[0]
	default:
		payload["entity_id"] = targets
	}

	path := fmt.Sprintf("/api/services/%s/%s", domain, action)
	if err := c.do(ctx, "call_service", http.MethodPost, path, payload, nil, serviceTimeout); err != nil {
		return fmt.Errorf("call %s: %w", service, err)
	}
	c.logger.Info("service called", "service", service, "targets", targets)
	return nil
}

// GetAreaMap renders the area → entities mapping through the template
// endpoint.
func (c *Client) GetAreaMap(ctx context.Context) (AreaMap, error) {
	var raw string
	body := map[string]string{"template": areaTemplate}
	if err := c.do(ctx, "get_areas", http.MethodPost, "/api/template", body, &raw, templateTimeout); err != nil {
		return nil, err
	}
	areas := AreaMap{}
	if err := json.Unmarshal([]byte(raw), &areas); err != nil {
		return nil, fmt.Errorf("decode area template output: %w", err)
	}
	return areas, nil
}

// GetHistory returns the state changes of one entity since the given time.
func (c *Client) GetHistory(ctx context.Context, entityID string, since time.Time) ([]State, error) {
	path := "/api/history/period/" + url.PathEscape(since.Format(time.RFC3339)) +
		"?filter_entity_id=" + url.QueryEscape(entityID)
	var history [][]State
	if err := c.do(ctx, "get_history", http.MethodGet, path, nil, &history, historyTimeout); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return history[0], nil
}

// SplitEntityID splits "domain.object_id". ok is false when either side
// is empty or there is no dot.
func SplitEntityID(entityID string) (domain, objectID string, ok bool) {
	domain, objectID, found := strings.Cut(entityID, ".")
	if !found || domain == "" || objectID == "" {
		return "", "", false
	}
	return domain, objectID, true
}

// InvalidServiceError reports a service string not in domain.action form.
type InvalidServiceError struct {
	Service string
}

func (e *InvalidServiceError) Error() string {
	return fmt.Sprintf("invalid service format %q, expected domain.action", e.Service)
}

// SplitService splits "domain.action".
func SplitService(service string) (domain, action string, err error) {
	domain, action, ok := SplitEntityID(service)
	if !ok || strings.Contains(action, ".") {
		return "", "", &InvalidServiceError{Service: service}
	}
	return domain, action, nil
}

// do performs one API request. A *string result receives the raw body.
func (c *Client) do(ctx context.Context, op, method, path string, data, result any, timeout time.Duration) (err error) {
	if c.token == "" {
		return ErrNotConfigured
	}

	start := time.Now()
	defer func() { c.metrics.ObserveBackend("homeassistant", op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", op, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if err := httpkit.CheckStatus(resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch r := result.(type) {
	case nil:
		return nil
	case *string:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*r = string(b)
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
