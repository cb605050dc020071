package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// VaultKeyEnv holds a hex master key that overrides the key file.
const VaultKeyEnv = "KOMUN_VAULT_KEY"

const masterKeyLength = 32

var (
	ErrInvalidVaultKey = errors.New("invalid vault key format")
)

// Keys are the securecookie hash and block keys.
type Keys struct {
	Hash  []byte
	Block []byte
}

// LoadKeys derives the vault keys from KOMUN_VAULT_KEY, or from the key
// file at keyPath, creating it with a random master key if missing.
func LoadKeys(keyPath string) (Keys, error) {
	master, err := masterKey(keyPath)
	if err != nil {
		return Keys{}, err
	}
	return DeriveKeys(master)
}

// DeriveKeys expands a master key into independent hash and block keys.
func DeriveKeys(master []byte) (Keys, error) {
	if len(master) < masterKeyLength {
		return Keys{}, ErrInvalidVaultKey
	}

	hash, err := expand(master, "komun vault hmac")
	if err != nil {
		return Keys{}, err
	}
	block, err := expand(master, "komun vault aes")
	if err != nil {
		return Keys{}, err
	}
	return Keys{Hash: hash, Block: block}, nil
}

func expand(master []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return key, nil
}

func masterKey(keyPath string) ([]byte, error) {
	if keyHex := os.Getenv(VaultKeyEnv); keyHex != "" {
		return decodeKey(keyHex)
	}

	data, err := os.ReadFile(keyPath)
	if err == nil {
		return decodeKey(string(data))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read vault key: %w", err)
	}

	key := make([]byte, masterKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("write vault key: %w", err)
	}
	return key, nil
}

func decodeKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil || len(key) < masterKeyLength {
		return nil, ErrInvalidVaultKey
	}
	return key, nil
}
