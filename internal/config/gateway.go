package config

import (
	"os"
	"time"
)

// GatewayConfig holds PayPal and Google OAuth settings.  An empty
// GoogleClientID disables Google sign-in.
type GatewayConfig struct {
	PayPalBaseURL      string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalCurrency     string
	Timeout            time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// LoadGatewayConfig reads PAYPAL_*, GATEWAY_TIMEOUT and OAUTH_GOOGLE_*.
// PayPal credentials are required.
func LoadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		PayPalBaseURL:      envStr("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalClientID:     must("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: must("PAYPAL_CLIENT_SECRET"),
		PayPalCurrency:     envStr("PAYPAL_CURRENCY", "USD"),
		Timeout:            envDur("GATEWAY_TIMEOUT", 10*time.Second),
		GoogleClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  envStr("OAUTH_GOOGLE_REDIRECT", "http://127.0.0.1:8080/auth/google"),
	}
}
