package server

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the gateway's deployment configuration, loaded from
// MINTGATE_-prefixed environment variables.
type Config struct {
	Host string
	Port int

	DomainName        string
	VerifyingContract common.Address

	// ChainID is used when RPCURL is empty; with an RPC endpoint the chain
	// ID is queried live on every digest computation.
	ChainID *big.Int
	RPCURL  string

	Hardcap           uint64
	AuthorizedMinting bool

	MinterAddresses []common.Address
	HardcapAdmins   []common.Address

	// NonceDBPath selects the sqlite nonce store; empty keeps nonces in
	// memory only.
	NonceDBPath string

	CORSAllowedOrigins []string
}

// ConfigFromEnv loads the gateway configuration from environment variables.
func ConfigFromEnv() (*Config, error) {
	config := &Config{
		Host: envDefault("MINTGATE_HOST", "127.0.0.1"),
	}

	portRaw := envDefault("MINTGATE_PORT", "8935")
	port, portErr := strconv.Atoi(portRaw)
	if portErr != nil {
		return nil, fmt.Errorf("MINTGATE_PORT must be an integer, got %s", portRaw)
	}
	config.Port = port

	config.DomainName = os.Getenv("MINTGATE_DOMAIN_NAME")
	if config.DomainName == "" {
		return nil, errors.New("MINTGATE_DOMAIN_NAME must be set")
	}

	contractRaw := os.Getenv("MINTGATE_CONTRACT_ADDRESS")
	if !common.IsHexAddress(contractRaw) {
		return nil, fmt.Errorf("MINTGATE_CONTRACT_ADDRESS must be a valid Ethereum address, got %q", contractRaw)
	}
	config.VerifyingContract = common.HexToAddress(contractRaw)
	if config.VerifyingContract == (common.Address{}) {
		return nil, errors.New("MINTGATE_CONTRACT_ADDRESS must be a non-zero Ethereum address")
	}

	config.RPCURL = os.Getenv("MINTGATE_HTTP_PROVIDER_URL")
	chainIDRaw := os.Getenv("MINTGATE_CHAIN_ID")
	if config.RPCURL == "" {
		if chainIDRaw == "" {
			return nil, errors.New("one of MINTGATE_HTTP_PROVIDER_URL or MINTGATE_CHAIN_ID must be set")
		}
		chainID, parsed := new(big.Int).SetString(chainIDRaw, 0)
		if !parsed {
			return nil, fmt.Errorf("MINTGATE_CHAIN_ID must be a valid integer, got %s", chainIDRaw)
		}
		config.ChainID = chainID
	}

	hardcapRaw := os.Getenv("MINTGATE_HARDCAP")
	if hardcapRaw == "" {
		return nil, errors.New("MINTGATE_HARDCAP must be set")
	}
	hardcap, hardcapErr := strconv.ParseUint(hardcapRaw, 10, 64)
	if hardcapErr != nil {
		return nil, fmt.Errorf("MINTGATE_HARDCAP must be a nonnegative integer, got %s", hardcapRaw)
	}
	config.Hardcap = hardcap

	config.AuthorizedMinting = envDefault("MINTGATE_AUTHORIZED_MINTING", "true") == "true"

	minters, mintersErr := parseAddressList(os.Getenv("MINTGATE_MINTER_ADDRESSES"))
	if mintersErr != nil {
		return nil, fmt.Errorf("MINTGATE_MINTER_ADDRESSES: %w", mintersErr)
	}
	config.MinterAddresses = minters

	admins, adminsErr := parseAddressList(os.Getenv("MINTGATE_HARDCAP_ADMIN_ADDRESSES"))
	if adminsErr != nil {
		return nil, fmt.Errorf("MINTGATE_HARDCAP_ADMIN_ADDRESSES: %w", adminsErr)
	}
	config.HardcapAdmins = admins

	config.NonceDBPath = os.Getenv("MINTGATE_NONCE_DB")

	if origins := os.Getenv("MINTGATE_CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORSAllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}

func parseAddressList(raw string) ([]common.Address, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	addresses := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("%q is not a valid Ethereum address", part)
		}
		addresses = append(addresses, common.HexToAddress(part))
	}
	return addresses, nil
}

func envDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
