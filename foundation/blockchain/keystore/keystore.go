// Package keystore reads a folder of private key files and provides signers
// for the accounts it holds keys for. It also acts as a name lookup, the
// name of an account is the file name of its key.
package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExtension is the file extension for stored private keys.
const keyExtension = ".ecdsa"

// KeyStore maintains a map of accounts to their private keys and names.
type KeyStore struct {
	root  string
	mu    sync.RWMutex
	keys  map[database.AccountID]*ecdsa.PrivateKey
	names map[database.AccountID]string
}

// New constructs a key store with the keys found in the root folder. The
// folder is created if it doesn't exist.
func New(root string) (*KeyStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}

	ks := KeyStore{
		root:  root,
		keys:  make(map[database.AccountID]*ecdsa.PrivateKey),
		names: make(map[database.AccountID]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if filepath.Ext(fileName) != keyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		account := database.PublicKeyToAccountID(privateKey)
		ks.keys[account] = privateKey
		ks.names[account] = strings.TrimSuffix(filepath.Base(fileName), keyExtension)

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ks, nil
}

// Add stores the private key under the name. The key file is only readable
// by the owner.
func (ks *KeyStore) Add(name string, privateKey *ecdsa.PrivateKey) (database.AccountID, error) {
	path := filepath.Join(ks.root, name+keyExtension)
	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return "", fmt.Errorf("saving key: %w", err)
	}

	account := database.PublicKeyToAccountID(privateKey)

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.keys[account] = privateKey
	ks.names[account] = name

	return account, nil
}

// Generate creates a new private key and stores it under the name.
func (ks *KeyStore) Generate(name string) (database.AccountID, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}

	return ks.Add(name, privateKey)
}

// Accounts returns all the accounts that we have a private key for.
func (ks *KeyStore) Accounts() []database.AccountID {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	accounts := make([]database.AccountID, 0, len(ks.keys))
	for account := range ks.keys {
		accounts = append(accounts, account)
	}
	return accounts
}

// Account returns the account stored under the name.
func (ks *KeyStore) Account(name string) (database.AccountID, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	for account, n := range ks.names {
		if n == name {
			return account, nil
		}
	}

	return "", fmt.Errorf("no key stored for %q", name)
}

// Lookup returns the name for the specified account.
func (ks *KeyStore) Lookup(account database.AccountID) string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	name, exists := ks.names[account]
	if !exists {
		return string(account)
	}
	return name
}

// Copy returns a copy of the map of names and accounts.
func (ks *KeyStore) Copy() map[database.AccountID]string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	cpy := make(map[database.AccountID]string, len(ks.names))
	for account, name := range ks.names {
		cpy[account] = name
	}
	return cpy
}

// Signer returns a signer that signs with the private keys of the
// specified accounts.
func (ks *KeyStore) Signer(accounts ...database.AccountID) (Signer, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	keys := make([]*ecdsa.PrivateKey, len(accounts))
	for i, account := range accounts {
		pk, exists := ks.keys[account]
		if !exists {
			return Signer{}, fmt.Errorf("cannot sign for %s, no corresponding private key is stored", signature.Abbreviate(string(account)))
		}
		keys[i] = pk
	}

	return NewSigner(keys...), nil
}

// =============================================================================

// Signer signs records with a fixed set of private keys. It implements the
// database.Signer interface.
type Signer struct {
	keys []*ecdsa.PrivateKey
}

// NewSigner constructs a signer for the private keys.
func NewSigner(keys ...*ecdsa.PrivateKey) Signer {
	return Signer{keys: keys}
}

// Sign produces one signature per private key.
func (s Signer) Sign(value any) ([]string, error) {
	sigs := make([]string, len(s.keys))
	for i, pk := range s.keys {
		sig, err := signature.Sign(value, pk)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}

	return sigs, nil
}
