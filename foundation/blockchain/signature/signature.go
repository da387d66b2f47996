// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// NonceLength is the number of random bytes in a generated nonce.
const NonceLength = 32

// byobID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the byob ledger.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const byobID = 29

// =============================================================================

// Hash returns a unique string for the value. The named top level fields are
// removed before hashing. The value is reduced to a generic JSON document
// first so the keys are always hashed in sorted order.
func Hash(value any, excluded ...string) string {
	data, err := canonical(value, excluded...)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Encode returns the 0x prefixed hex representation of the bytes.
func Encode(b []byte) string {
	return hexutil.Encode(b)
}

// Decode converts a 0x prefixed hex string back into bytes.
func Decode(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// GenerateNonce returns a new random nonce.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return nonce, nil
}

// PublicKey returns the encoded compressed public key for the private key.
func PublicKey(privateKey *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.CompressPubkey(&privateKey.PublicKey))
}

// IsPublicKey verifies the string is an encoded compressed public key that
// lies on the curve.
func IsPublicKey(s string) bool {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != 33 {
		return false
	}

	if _, err := crypto.DecompressPubkey(b); err != nil {
		return false
	}

	return true
}

// Sign uses the specified private key to sign the data.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", errors.New("invalid signature")
	}

	// Stamp the recovery id so the signature is unique to this ledger.
	sig[crypto.RecoveryIDOffset] += byobID

	return hexutil.Encode(sig), nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(sig string) error {
	b, err := hexutil.Decode(sig)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	if len(b) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length, got %d, exp %d", len(b), crypto.SignatureLength)
	}

	// Check the recovery id is either 0 or 1.
	v := b[crypto.RecoveryIDOffset] - byobID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(b[:32])
	s := new(big.Int).SetBytes(b[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromSignature extracts the encoded public key of the account that signed
// the data.
func FromSignature(value any, sig string) (string, error) {
	if err := VerifySignature(sig); err != nil {
		return "", err
	}

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong public key back. The public key is being
	// extracted from the data and signature.

	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Remove the ledger stamp from the recovery id.
	b, _ := hexutil.Decode(sig)
	b[crypto.RecoveryIDOffset] -= byobID

	publicKey, err := crypto.SigToPub(data, b)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(crypto.CompressPubkey(publicKey)), nil
}

// Abbreviate shortens an encoded key or hash for logs and error messages.
func Abbreviate(s string) string {
	const size = 10
	if len(s) <= size {
		return s
	}

	return s[:size] + "..."
}

// =============================================================================

// canonical reduces the value to a JSON document with sorted keys and the
// excluded top level fields removed.
func canonical(value any, excluded ...string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	if obj, ok := doc.(map[string]any); ok {
		for _, field := range excluded {
			delete(obj, field)
		}
	}

	return json.Marshal(doc)
}

// stamp returns a hash of 32 bytes that represents this data with
// the byob stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data into its canonical form.
	v, err := canonical(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Convert the stamp into a slice of bytes. This stamp is
	// used so signatures we produce when signing data
	// are always unique to the byob ledger.
	stamp := []byte("\x19BYOB Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash)

	return data, nil
}
