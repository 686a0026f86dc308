// Package clients builds authenticated SDK clients for the supported venues.
package clients

import (
	"github.com/adshao/go-binance/v2"

	"github.com/quantfell/parita/internal/domain"
)

// NewBinanceClient returns a spot client for the given API credentials.
func NewBinanceClient(apiKey, apiSecret string) (*binance.Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, &domain.ConfigError{Reason: "BINANCE_API_KEY and BINANCE_API_SECRET must be set"}
	}

	return binance.NewClient(apiKey, apiSecret), nil
}
