package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// WaitForRPC polls url with eth_blockNumber until it answers or attempts run out.
func WaitForRPC(ctx context.Context, url string, attempts int, interval time.Duration) error {
	for i := 0; i < attempts; i++ {
		client, err := ethclient.DialContext(ctx, url)
		if err == nil {
			_, err = client.BlockNumber(ctx)
			client.Close()
			if err == nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("timed out waiting for RPC at %s", url)
}

// Dial connects to url and checks that it serves chainID.
func Dial(ctx context.Context, url string, chainID uint64) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID from %s: %w", url, err)
	}
	if chainID != 0 && remote.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("rpc at %s serves chain %d, expected %d", url, remote.Uint64(), chainID)
	}

	return client, nil
}
