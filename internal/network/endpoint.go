package network

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/ethereum/go-ethereum/crypto"
)

// devAccountKey is anvil's and hardhat's account #0; it is only ever used on development networks.
const devAccountKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	ErrMissingRPCURL     = errors.New("rpc url is not configured")
	ErrMissingSigningKey = errors.New("signing key is not configured")
)

// RPCURL returns the endpoint for n, preferring the variable named by rpc-url-env.
func RPCURL(name string, n configs.Network) (string, error) {
	if n.RPCURLEnv != "" {
		if url := strings.TrimSpace(os.Getenv(n.RPCURLEnv)); url != "" {
			return url, nil
		}
	}
	if n.RPCURL != "" {
		return n.RPCURL, nil
	}

	if n.RPCURLEnv != "" {
		return "", fmt.Errorf("network %s: %w (set %s)", name, ErrMissingRPCURL, n.RPCURLEnv)
	}

	return "", fmt.Errorf("network %s: %w", name, ErrMissingRPCURL)
}

// SigningKey parses the configured private key. Development networks fall back to the well-known dev account.
func SigningKey(p Profile, secrets configs.Secrets) (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(secrets.PrivateKey), "0x")
	if raw == "" {
		if !p.IsDevelopment {
			return nil, fmt.Errorf("network %s: %w (set PRIVATE_KEY)", p.Name, ErrMissingSigningKey)
		}
		raw = devAccountKey
	}

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return key, nil
}
