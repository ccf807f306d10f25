package refprice

import (
	"os"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/botwatch/internal/clients"
)

const defaultHyperliquidAPIURL = "https://api.hyperliquid.xyz"

// New builds a pricer for the configured platform. Binance and Bybit
// price endpoints are public, so empty API keys are fine; Hyperliquid
// needs a wallet key to construct its SDK client.
func New(platform string) (Pricer, error) {
	switch platform {
	case "binance":
		client := clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		return NewBinancePricer(client), nil
	case "bybit":
		client := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		return NewBybitPricer(client), nil
	case "hyperliquid":
		key := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return nil, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		apiURL := os.Getenv("HYPERLIQUID_API_URL")
		if apiURL == "" {
			apiURL = defaultHyperliquidAPIURL
		}
		client, err := clients.NewHyperliquidClient(key, apiURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		return NewHyperliquidPricer(client.Info()), nil
	default:
		return nil, errors.Errorf("unsupported refprice platform: %s", platform)
	}
}
