// Package session owns the chat protocol's credential material: the
// singleton credential record stored under the reserved "creds" key, and the
// namespaced key-material sub-store the protocol layer reads and writes in
// batches.
package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/tharunkd/attendbot/codec"
)

// KeyPair is an X25519 key pair. The private half never leaves the store.
type KeyPair struct {
	Public  codec.Buffer `json:"public"`
	Private codec.Buffer `json:"private"`
}

// SignedPreKey is a pre-key whose public half is signed by the identity key.
type SignedPreKey struct {
	KeyPair   KeyPair      `json:"keyPair"`
	Signature codec.Buffer `json:"signature"`
	KeyID     uint32       `json:"keyId"`
}

// AccountSettings holds per-account protocol toggles.
type AccountSettings struct {
	UnarchiveChats bool `json:"unarchiveChats"`
}

// Creds is the credential record the protocol layer needs to resume an
// authenticated connection. It is created once, mutated in place on every
// credential rotation, and deleted only on explicit logout.
type Creds struct {
	NoiseKey                 KeyPair           `json:"noiseKey"`
	SignedIdentityKey        KeyPair           `json:"signedIdentityKey"`
	SignedPreKey             SignedPreKey      `json:"signedPreKey"`
	RegistrationID           uint32            `json:"registrationId"`
	AdvSecretKey             string            `json:"advSecretKey"`
	ProcessedHistoryMessages []json.RawMessage `json:"processedHistoryMessages"`
	NextPreKeyID             uint32            `json:"nextPreKeyId"`
	FirstUnuploadedPreKeyID  uint32            `json:"firstUnuploadedPreKeyId"`
	AccountSettings          AccountSettings   `json:"accountSettings"`
}

// generateKeyPair produces a clamped X25519 private key and its public half.
func generateKeyPair() (KeyPair, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return KeyPair{}, fmt.Errorf("read random: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// signedPreKey generates pre-key number id and signs its public half with an
// ed25519 key derived from the identity private seed.
func signedPreKey(identity KeyPair, id uint32) (SignedPreKey, error) {
	pair, err := generateKeyPair()
	if err != nil {
		return SignedPreKey{}, err
	}
	signKey := ed25519.NewKeyFromSeed(identity.Private)
	sig := ed25519.Sign(signKey, pair.Public)
	return SignedPreKey{KeyPair: pair, Signature: sig, KeyID: id}, nil
}

// generateRegistrationID returns a random id in the protocol's 14-bit range,
// never zero.
func generateRegistrationID() (uint32, error) {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return uint32(binary.BigEndian.Uint16(buf[:]))&0x3fff + 1, nil
}

// NewCreds synthesizes a fresh credential record: identity and noise
// keypairs, one signed pre-key (id 1), a registration id, and a 32-byte
// advertising secret.
func NewCreds() (*Creds, error) {
	identity, err := generateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("identity key: %w", err)
	}
	noise, err := generateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("noise key: %w", err)
	}
	preKey, err := signedPreKey(identity, 1)
	if err != nil {
		return nil, fmt.Errorf("signed pre-key: %w", err)
	}
	regID, err := generateRegistrationID()
	if err != nil {
		return nil, fmt.Errorf("registration id: %w", err)
	}
	advSecret := make([]byte, 32)
	if _, err := rand.Read(advSecret); err != nil {
		return nil, fmt.Errorf("adv secret: %w", err)
	}
	return &Creds{
		NoiseKey:                 noise,
		SignedIdentityKey:        identity,
		SignedPreKey:             preKey,
		RegistrationID:           regID,
		AdvSecretKey:             base64.StdEncoding.EncodeToString(advSecret),
		ProcessedHistoryMessages: []json.RawMessage{},
		NextPreKeyID:             1,
		FirstUnuploadedPreKeyID:  1,
		AccountSettings:          AccountSettings{UnarchiveChats: false},
	}, nil
}
