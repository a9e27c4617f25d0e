// Package state seals the OAuth state parameter so the requester identity survives the
// authorization redirect without server-side session storage.
//
// The wire form is base64(cipherText) "," base64(iv), both standard base64 with padding.
// Any modification of either half, or a different key, makes [Codec.Decode] fail with
// [shared.ErrDecryption]; callers reject the callback and never retry with the same state.
package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/desertthunder/trackwatch/internal/shared"
)

// RequesterParam is the query parameter carrying the requester id through /login.
const RequesterParam = "id"

// Codec seals and opens state payloads using AES-GCM.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a raw AES key (16, 24 or 32 bytes).
func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// GenerateKey returns a random 256-bit key in the base64 form the config expects.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encode encrypts plaintext under a fresh random 96-bit iv.
func (c *Codec) Encode(plaintext []byte) (cipherText, iv string, err error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("read iv: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decode authenticates and decrypts a payload produced by Encode.
func (c *Codec) Decode(cipherText, iv string) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iv", shared.ErrDecryption)
	}
	// aead.Open panics on a nonce of the wrong length.
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: iv must be %d bytes", shared.ErrDecryption, c.aead.NonceSize())
	}

	sealed, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cipher text", shared.ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryption, err)
	}
	return plaintext, nil
}

// Seal encodes plaintext into the single comma-joined state value.
func (c *Codec) Seal(plaintext []byte) (string, error) {
	cipherText, iv, err := c.Encode(plaintext)
	if err != nil {
		return "", err
	}
	return cipherText + "," + iv, nil
}

// Open reverses Seal.
func (c *Codec) Open(value string) ([]byte, error) {
	cipherText, iv, ok := strings.Cut(value, ",")
	if !ok || cipherText == "" || iv == "" {
		return nil, fmt.Errorf("%w: state must be cipherText,iv", shared.ErrDecryption)
	}
	return c.Decode(cipherText, iv)
}

// AuthState is carried through the authorization redirect: the requester id plus the
// original /login query parameters. It is never persisted.
type AuthState struct {
	RequesterID string
	Query       url.Values
}

// NewAuthState builds the state for a /login request. The requester id is mandatory.
func NewAuthState(query url.Values) (AuthState, error) {
	id := query.Get(RequesterParam)
	if id == "" {
		return AuthState{}, fmt.Errorf("%w: missing %s", shared.ErrValidation, RequesterParam)
	}
	return AuthState{RequesterID: id, Query: query}, nil
}

// Issue seals s into a state value for the authorize URL.
func (c *Codec) Issue(s AuthState) (string, error) {
	return c.Seal([]byte(s.Query.Encode()))
}

// Consume opens a state value received on /callback.
//
// A state that decrypts but lacks a requester id is a validation failure.
func (c *Codec) Consume(value string) (AuthState, error) {
	plaintext, err := c.Open(value)
	if err != nil {
		return AuthState{}, err
	}

	query, err := url.ParseQuery(string(plaintext))
	if err != nil {
		return AuthState{}, fmt.Errorf("%w: state payload: %v", shared.ErrValidation, err)
	}
	return NewAuthState(query)
}
