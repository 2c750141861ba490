package lfu

import "io"

// Encryptor encrypts large-object content before a remote stores it at rest.
// Encryption uses the public key only, so no passphrase is needed during uploads.
type Encryptor interface {
	// Setup performs one-time key generation. Generates a key pair, stores
	// the public key in plaintext, and encrypts the private key with the
	// provided passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for reading objects back.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
