package suites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ethereum-optimism/infra/op-matrix/inventory"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

const defaultAgifyName = "michael"

var agifyCases = []string{"name_has_age", "country_has_age"}

type agifyResponse struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Count     int    `json:"count"`
	CountryID string `json:"country_id,omitempty"`
}

// agifySuite checks the age estimate API for the name held in the variant value.
type agifySuite struct {
	baseURL string
	name    string
	client  *http.Client
	limiter *rate.Limiter
}

var _ inventory.Cleaner = (*agifySuite)(nil)

func newAgifyFactory(opts Options) inventory.SuiteFactory {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.AgifyRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.AgifyRate), 1)
	}
	return func(env inventory.SuiteEnv) (inventory.Suite, error) {
		name := env.ConfigValue
		if name == "" || name == types.NoVariant {
			name = defaultAgifyName
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		return &agifySuite{
			baseURL: strings.TrimRight(opts.AgifyBaseURL, "/"),
			name:    name,
			client:  &http.Client{Timeout: opts.HTTPTimeout, Transport: transport},
			limiter: limiter,
		}, nil
	}
}

func (s *agifySuite) Cases() map[string]inventory.Case {
	return map[string]inventory.Case{
		"name_has_age":    s.nameHasAge,
		"country_has_age": s.countryHasAge,
	}
}

func (s *agifySuite) Cleanup() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *agifySuite) nameHasAge(ctx context.Context) error {
	resp, err := s.fetch(ctx, url.Values{"name": {s.name}})
	if err != nil {
		return err
	}
	return checkEstimate(resp, s.name)
}

func (s *agifySuite) countryHasAge(ctx context.Context) error {
	resp, err := s.fetch(ctx, url.Values{"name": {s.name}, "country_id": {"US"}})
	if err != nil {
		return err
	}
	if err := checkEstimate(resp, s.name); err != nil {
		return err
	}
	return types.Assertf(resp.CountryID == "US", "expected country_id US, got %q", resp.CountryID)
}

func checkEstimate(resp *agifyResponse, name string) error {
	if err := types.Assertf(resp.Name == name, "expected name %q, got %q", name, resp.Name); err != nil {
		return err
	}
	if err := types.Assertf(resp.Age > 0, "expected a positive age, got %d", resp.Age); err != nil {
		return err
	}
	return types.Assertf(resp.Count > 0, "expected a positive count, got %d", resp.Count)
}

func (s *agifySuite) fetch(ctx context.Context, query url.Values) (*agifyResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("agify rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agify request failed: %w", err)
	}
	defer res.Body.Close()

	if err := types.Assertf(res.StatusCode == http.StatusOK, "expected status 200, got %d", res.StatusCode); err != nil {
		return nil, err
	}
	var out agifyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode agify response: %w", err)
	}
	return &out, nil
}
