package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hirokisan/bybit/v2"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// Exchange clients used by the optional reference price check. Keys are
// only needed for authenticated endpoints; public tickers work without
// them.

func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return bybit.NewClient().WithAuth(apiKey, apiSecret)
}

// HyperliquidClient wraps the Hyperliquid SDK exchange handle; the
// reference pricer only needs its Info API.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient derives the account address from the private key
// and builds the SDK exchange. Info and SpotMeta are fetched lazily by
// the SDK.
func NewHyperliquidClient(privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	key := privateKeyHex
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, err
	}

	pub := privateKey.Public()
	pubECDSA, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pubECDSA).Hex()

	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func (c *HyperliquidClient) Info() *hyperliquid.Info   { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string    { return c.accountAddr }

