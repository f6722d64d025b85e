package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"lifelog/internal/storage/fs"
)

// The API token is stored encrypted at rest: a passphrase-derived
// argon2id key seals it in a nacl secretbox.
const (
	keyMemory     = 64 * 1024
	keyIterations = 3
	keyThreads    = 1
	saltLength    = 16
)

var ErrWrongPassphrase = errors.New("wrong passphrase")

type tokenFile struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
	Box   string `json:"box"`
}

// SaveToken writes the encrypted token file atomically with owner-only
// permissions.
func SaveToken(path, token, passphrase string) error {
	if token == "" {
		return errors.New("token must not be empty")
	}
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	key := deriveKey(passphrase, salt)
	sealed := secretbox.Seal(nil, []byte(token), &nonce, key)

	payload, err := json.MarshalIndent(tokenFile{
		Salt:  base64.RawStdEncoding.EncodeToString(salt),
		Nonce: base64.RawStdEncoding.EncodeToString(nonce[:]),
		Box:   base64.RawStdEncoding.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return err
	}
	return fs.WriteFileAtomic(path, payload, 0o600)
}

// LoadToken decrypts the token file. A wrong passphrase is reported as
// ErrWrongPassphrase; callers may prompt again.
func LoadToken(path, passphrase string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(file.Salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	rawNonce, err := base64.RawStdEncoding.DecodeString(file.Nonce)
	if err != nil || len(rawNonce) != 24 {
		return "", errors.New("invalid nonce in token file")
	}
	sealed, err := base64.RawStdEncoding.DecodeString(file.Box)
	if err != nil {
		return "", fmt.Errorf("decode box: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], rawNonce)
	token, ok := secretbox.Open(nil, sealed, &nonce, deriveKey(passphrase, salt))
	if !ok {
		return "", ErrWrongPassphrase
	}
	return string(token), nil
}

func deriveKey(passphrase string, salt []byte) *[32]byte {
	raw := argon2.IDKey([]byte(passphrase), salt, keyIterations, keyMemory, keyThreads, 32)
	var key [32]byte
	copy(key[:], raw)
	return &key
}
