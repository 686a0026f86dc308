package clients

import (
	"github.com/hirokisan/bybit/v2"

	"github.com/quantfell/parita/internal/domain"
)

// NewBybitClient returns a V5 client for the given API credentials.
func NewBybitClient(apiKey, apiSecret string) (*bybit.Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, &domain.ConfigError{Reason: "BYBIT_API_KEY and BYBIT_API_SECRET must be set"}
	}

	return bybit.NewClient().WithAuth(apiKey, apiSecret), nil
}
