// Package wallet rotates Gonka signing credentials across requests.
package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gonkalabs/deckanon/internal/signer"
)

// Wallet holds a signer and its requester address.
type Wallet struct {
	Signer  *signer.Signer
	Address string
}

// Credential is a private key with an optional address. An empty address
// is derived from the key.
type Credential struct {
	PrivateKey string
	Address    string
}

// Pool hands out wallets in atomic round-robin order.
type Pool struct {
	wallets []Wallet
	counter atomic.Uint64
}

// NewPool creates a Pool from a list of wallets.
// At least one wallet is required.
func NewPool(wallets []Wallet) (*Pool, error) {
	if len(wallets) == 0 {
		return nil, errors.New("wallet: at least one wallet is required")
	}
	for i, w := range wallets {
		if w.Signer == nil || w.Address == "" {
			return nil, fmt.Errorf("wallet: entry %d is incomplete", i+1)
		}
	}
	slog.Info("wallet pool initialised", "wallets", len(wallets))
	return &Pool{wallets: wallets}, nil
}

// FromCredentials builds a Pool, deriving missing addresses.
func FromCredentials(creds []Credential) (*Pool, error) {
	wallets := make([]Wallet, 0, len(creds))
	for i, c := range creds {
		s, err := signer.New(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i+1, err)
		}
		addr := c.Address
		if addr == "" {
			if addr, err = s.Address(signer.AddressPrefix); err != nil {
				return nil, fmt.Errorf("wallet %d: %w", i+1, err)
			}
			slog.Info("wallet address derived", "index", i, "address", addr)
		}
		wallets = append(wallets, Wallet{Signer: s, Address: addr})
	}
	return NewPool(wallets)
}

// Next returns the next wallet. Safe for concurrent use.
func (p *Pool) Next() *Wallet {
	idx := p.counter.Add(1) - 1
	return &p.wallets[idx%uint64(len(p.wallets))]
}

// Len returns the number of wallets in the pool.
func (p *Pool) Len() int {
	return len(p.wallets)
}
