// Package signer signs Gonka network requests with a secp256k1 key and
// derives the bech32 requester address that belongs to it.
package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// AddressPrefix is the bech32 human-readable part of Gonka addresses.
const AddressPrefix = "gonka"

// Signer produces ECDSA-SHA256 signatures over secp256k1 in the layout the
// Gonka transfer agents verify.
type Signer struct {
	key *ecdsa.PrivateKey
	now func() time.Time
}

// New creates a Signer from a hex-encoded private key (0x prefix optional).
func New(hexKey string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("signer: invalid hex key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("signer: key must be 32 bytes, got %d", len(raw))
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return &Signer{key: key, now: time.Now}, nil
}

// Sign returns the base64 signature for payload addressed to
// transferAddress, along with the nanosecond timestamp it covers.
//
// The signed message is SHA256(hex(SHA256(payload)) + timestamp + transferAddress).
// Signatures are deterministic (RFC 6979), low-S, and encoded as r||s.
func (s *Signer) Sign(payload []byte, transferAddress string) (string, int64, error) {
	ts := s.now().UnixNano()
	sig, err := s.signAt(payload, transferAddress, ts)
	return sig, ts, err
}

func (s *Signer) signAt(payload []byte, transferAddress string, ts int64) (string, error) {
	sig, err := crypto.Sign(digest(payload, transferAddress, ts), s.key)
	if err != nil {
		return "", fmt.Errorf("signer: sign: %w", err)
	}
	// drop the recovery byte
	return base64.StdEncoding.EncodeToString(sig[:64]), nil
}

func digest(payload []byte, transferAddress string, ts int64) []byte {
	payloadHash := sha256.Sum256(payload)
	input := hex.EncodeToString(payloadHash[:]) + strconv.FormatInt(ts, 10) + transferAddress
	msg := sha256.Sum256([]byte(input))
	return msg[:]
}

// PublicKey returns the compressed public key.
func (s *Signer) PublicKey() []byte {
	return crypto.CompressPubkey(&s.key.PublicKey)
}

// Address derives the Cosmos-style account address for the key:
// bech32(prefix, RIPEMD160(SHA256(compressed pubkey))).
func (s *Signer) Address(prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return "", fmt.Errorf("signer: address: empty prefix")
	}
	sum := sha256.Sum256(s.PublicKey())
	h := ripemd160.New()
	h.Write(sum[:])
	conv, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("signer: address: %w", err)
	}
	addr, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("signer: address: %w", err)
	}
	return addr, nil
}
