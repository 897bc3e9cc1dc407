package chain

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenConfig describes one stablecoin contract on one chain.
type TokenConfig struct {
	Address  common.Address
	Decimals int32
}

// ChainConfig describes one supported EVM chain.
type ChainConfig struct {
	ChainID        int64
	Name           string
	RPCURL         string
	ExplorerURL    string
	NativeCurrency string
	Tokens         map[string]TokenConfig
}

// Registry is the immutable chain/token configuration built once at
// startup and passed explicitly to the reader and the verifier. There is
// no ambient global lookup.
type Registry struct {
	chains   map[int64]ChainConfig
	treasury common.Address
}

func defaultChains() map[int64]ChainConfig {
	return map[int64]ChainConfig{
		1: {
			ChainID:        1,
			Name:           "Ethereum",
			RPCURL:         envOr("RPC_URL_ETHEREUM", "https://eth.llamarpc.com"),
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
			Tokens: map[string]TokenConfig{
				"USDC": {Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6},
				"USDT": {Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6},
			},
		},
		42161: {
			ChainID:        42161,
			Name:           "Arbitrum One",
			RPCURL:         envOr("RPC_URL_ARBITRUM", "https://arb1.arbitrum.io/rpc"),
			ExplorerURL:    "https://arbiscan.io",
			NativeCurrency: "ETH",
			Tokens: map[string]TokenConfig{
				"USDC": {Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Decimals: 6},
				"USDT": {Address: common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), Decimals: 6},
			},
		},
		8453: {
			ChainID:        8453,
			Name:           "Base",
			RPCURL:         envOr("RPC_URL_BASE", "https://mainnet.base.org"),
			ExplorerURL:    "https://basescan.org",
			NativeCurrency: "ETH",
			Tokens: map[string]TokenConfig{
				"USDC": {Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},
				"USDT": {Address: common.HexToAddress("0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"), Decimals: 6},
			},
		},
		137: {
			ChainID:        137,
			Name:           "Polygon",
			RPCURL:         envOr("RPC_URL_POLYGON", "https://polygon-rpc.com"),
			ExplorerURL:    "https://polygonscan.com",
			NativeCurrency: "POL",
			Tokens: map[string]TokenConfig{
				"USDC": {Address: common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"), Decimals: 6},
				"USDT": {Address: common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"), Decimals: 6},
			},
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadRegistry builds the registry from environment configuration.
// TREASURY_ADDRESS is required; RPC URLs fall back to public endpoints.
func LoadRegistry() (*Registry, error) {
	treasury := os.Getenv("TREASURY_ADDRESS")
	if treasury == "" {
		return nil, fmt.Errorf("TREASURY_ADDRESS not set")
	}
	if !common.IsHexAddress(treasury) {
		return nil, fmt.Errorf("TREASURY_ADDRESS is not a valid address: %s", treasury)
	}

	r := &Registry{
		chains:   defaultChains(),
		treasury: common.HexToAddress(treasury),
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate() error {
	for id, cfg := range r.chains {
		if cfg.RPCURL == "" {
			return fmt.Errorf("chain %d (%s): empty RPC URL", id, cfg.Name)
		}
		for symbol, token := range cfg.Tokens {
			if token.Address == (common.Address{}) {
				return fmt.Errorf("chain %d: zero contract address for %s", id, symbol)
			}
			if token.Decimals <= 0 {
				return fmt.Errorf("chain %d: invalid decimals for %s", id, symbol)
			}
		}
	}
	return nil
}

// Chain returns the configuration for a chain id.
func (r *Registry) Chain(chainID int64) (ChainConfig, error) {
	cfg, ok := r.chains[chainID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	return cfg, nil
}

// Token resolves the contract for a token symbol on a chain.
func (r *Registry) Token(chainID int64, symbol string) (TokenConfig, error) {
	cfg, err := r.Chain(chainID)
	if err != nil {
		return TokenConfig{}, err
	}
	token, ok := cfg.Tokens[symbol]
	if !ok {
		return TokenConfig{}, fmt.Errorf("%w: %s on chain %d", ErrUnsupportedToken, symbol, chainID)
	}
	return token, nil
}

// Treasury returns the single receiving wallet all payments must land on.
func (r *Registry) Treasury() common.Address {
	return r.treasury
}

// ExplorerTxURL builds a block explorer link for a transaction hash.
func (r *Registry) ExplorerTxURL(chainID int64, txHash string) string {
	cfg, err := r.Chain(chainID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", cfg.ExplorerURL, txHash)
}

// BaseUnits scales a human-unit amount to the token's fixed-point base
// units. Amounts are never compared as floats; the scaled value must be
// an integer.
func (r *Registry) BaseUnits(chainID int64, symbol string, amount decimal.Decimal) (*big.Int, error) {
	token, err := r.Token(chainID, symbol)
	if err != nil {
		return nil, err
	}
	scaled := amount.Shift(token.Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, token.Decimals)
	}
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("amount %s must be positive", amount)
	}
	return scaled.BigInt(), nil
}
