package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/quantfell/parita/internal/domain"
)

// NewHyperliquidClient derives the account address from the private key
// and returns a signed exchange client for it. baseURL empty selects the
// SDK default endpoint.
func NewHyperliquidClient(privateKeyHex, baseURL string) (*hyperliquid.Exchange, string, error) {
	if privateKeyHex == "" {
		return nil, "", &domain.ConfigError{Reason: "HYPERLIQUID_PRIVATE_KEY must be set"}
	}

	key := strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")
	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, "", errors.Wrap(err, "parse hyperliquid private key")
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, "", errors.New("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pub).Hex()

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return ex, accountAddr, nil
}
