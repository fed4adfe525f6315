// Package chain implements the mint capability and chain-ID source
// against a live JSON-RPC endpoint.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/etherforge/mintgate/gate"
)

const mintABIJSON = `[{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}]`

// Minter submits mint(to, tokenId) transactions to target contracts and
// waits for inclusion. A reverted transaction is reported as an error so
// the enclosing operation can roll back its counter.
type Minter struct {
	client  *ethclient.Client
	abi     abi.ABI
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

func NewMinter(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey) (*Minter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}

	// eth_chainId returns the chain ID used for transaction signing at the
	// current best block
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving chain ID: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(mintABIJSON))
	if err != nil {
		return nil, err
	}

	return &Minter{
		client:  client,
		abi:     parsedABI,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

var _ gate.Minter = (*Minter)(nil)

func (m *Minter) Mint(ctx context.Context, target, recipient common.Address, tokenID *big.Int) error {
	opts, err := bind.NewKeyedTransactorWithChainID(m.key, m.chainID)
	if err != nil {
		return err
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(target, m.abi, m.client, m.client, m.client)
	tx, err := contract.Transact(opts, "mint", recipient, tokenID)
	if err != nil {
		return fmt.Errorf("submitting mint to %s: %w", target.Hex(), err)
	}

	receipt, err := bind.WaitMined(ctx, m.client, tx)
	if err != nil {
		return fmt.Errorf("waiting for mint %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("mint transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}

// From returns the transaction sender address.
func (m *Minter) From() common.Address {
	return m.from
}

// Client exposes the underlying RPC client, e.g. for LiveChainID.
func (m *Minter) Client() *ethclient.Client {
	return m.client
}

// LiveChainID returns a chain-ID source that queries the endpoint on
// every call, so forked or test environments that change identity are
// picked up without a restart.
func LiveChainID(client *ethclient.Client) gate.ChainIDFunc {
	return func(ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
}
