// Package stripe configures the Stripe API client for one environment and
// wraps the Checkout calls the storefront makes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	apiTimeout        = 20 * time.Second
	maxNetworkRetries = 2
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client is a per-environment Stripe API handle plus the webhook signing secret.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// settings is StripeConfig after trimming and environment checks.
type settings struct {
	env         string
	apiKey      string
	secret      string
	publishable string
}

func parseSettings(cfg config.StripeConfig) (settings, error) {
	s := settings{
		env:         strings.ToLower(strings.TrimSpace(cfg.Environment())),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		secret:      strings.TrimSpace(cfg.Secret),
		publishable: strings.TrimSpace(cfg.PublishableKey),
	}
	if s.env == "" {
		s.env = testEnv
	}
	if s.env != testEnv && s.env != liveEnv {
		return settings{}, errInvalidStripeEnv
	}
	switch {
	case s.apiKey == "":
		return settings{}, errAPIKeyRequired
	case s.secret == "":
		return settings{}, errSecretRequired
	case !keyMatchesEnv(s.env, s.apiKey, "sk_", "rk_"):
		return settings{}, fmt.Errorf("stripe environment %q requires a %s secret key (sk_%[2]s/rk_%[2]s)", s.env, s.env)
	case s.publishable != "" && !keyMatchesEnv(s.env, s.publishable, "pk_"):
		return settings{}, fmt.Errorf("stripe environment %q requires a pk_%s publishable key", s.env, s.env)
	}
	return s, nil
}

// keyMatchesEnv accepts sk_test_..., rk_live_... and so on for the given kinds.
func keyMatchesEnv(env, key string, kinds ...string) bool {
	for _, kind := range kinds {
		if strings.HasPrefix(key, kind+env) {
			return true
		}
	}
	return false
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	s, err := parseSettings(cfg)
	if err != nil {
		return nil, err
	}
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: apiTimeout},
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
	})
	api := stripe.NewClient(s.apiKey, stripe.WithBackends(backends))

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", s.env), "stripe.client.ready")
	}
	return &Client{api: api, environment: s.env, signingSecret: s.secret}, nil
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret verifies inbound webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
