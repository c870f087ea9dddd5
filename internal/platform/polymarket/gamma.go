package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, used here
// for trader profile lookup.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetProfile looks up the display profile for a wallet address. The API
// returns either a single object or a one-element array; both shapes are
// accepted. An empty result maps to domain.ErrNotFound.
func (g *GammaClient) GetProfile(ctx context.Context, wallet string) (domain.TraderProfile, error) {
	params := url.Values{}
	params.Set("address", wallet)

	path := "/profiles?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return domain.TraderProfile{}, fmt.Errorf("polymarket/gamma: get profile %s: %w", wallet, err)
	}

	var profile APIProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		var profiles []APIProfile
		if err := json.Unmarshal(body, &profiles); err != nil {
			return domain.TraderProfile{}, fmt.Errorf("polymarket/gamma: decode profile: %w", err)
		}
		if len(profiles) == 0 {
			return domain.TraderProfile{}, fmt.Errorf("polymarket/gamma: %w: address=%s", domain.ErrNotFound, wallet)
		}
		profile = profiles[0]
	}

	return profile.ToDomainProfile(wallet), nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
