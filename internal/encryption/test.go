package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"lfu-go/internal/lfu"
)

// testMagic marks objects written by TestEncryptor.
var testMagic = []byte("LFUTEST1")

// TestEncryptor is a reversible stand-in for age in tests. An object is
// testMagic followed by the plaintext, so tests can tell stored objects
// from their content without any key handling. It follows AgeEncryptor's
// key rules: Setup runs once and Unlock checks the passphrase given to it.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase *string
	encrypted  int
}

var _ lfu.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup records passphrase. Before Setup any passphrase unlocks.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != nil {
		return ErrKeysExist
	}
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	e.mu.Lock()
	e.encrypted++
	e.mu.Unlock()

	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing object header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("encrypting object: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (lfu.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, ErrBadPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// Encrypted returns how many objects were encrypted.
func (e *TestEncryptor) Encrypted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encrypted
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ lfu.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	magic := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading object header: %w", err)
	}
	if !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("object was not written by TestEncryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("decrypting object: %w", err)
	}
	return nil
}
