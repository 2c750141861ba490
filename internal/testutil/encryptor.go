package testutil

import (
	"lfu-go/internal/encryption"
)

// NewTestEncryptor creates a deterministic encryptor for remote tests.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
