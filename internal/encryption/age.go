package encryption

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"

	"lfu-go/internal/config"
	"lfu-go/internal/lfu"
)

var (
	// ErrKeysExist is returned by Setup when a key file is already present.
	ErrKeysExist = errors.New("encryption keys already exist")

	// ErrBadPassphrase is returned by Unlock when the passphrase does not
	// open the private key.
	ErrBadPassphrase = errors.New("wrong passphrase")
)

// AgeEncryptor encrypts staged objects to an X25519 recipient. The public
// key file holds the recipient in plaintext so uploads never need the
// passphrase; the private key file holds the identity, itself encrypted to
// the passphrase with age's scrypt recipient.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string

	mu        sync.Mutex
	recipient age.Recipient
}

var _ lfu.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a key pair and writes both key files. It never replaces
// existing keys: objects already encrypted to them would become unreadable.
func (e *AgeEncryptor) Setup(passphrase string) error {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s: %w", p, ErrKeysExist)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	lock, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating passphrase recipient: %w", err)
	}

	// Private key first: a public key without its identity would encrypt
	// objects nobody can read.
	err = writeKeyFile(e.privateKeyPath, 0600, func(w io.Writer) error {
		aw, err := age.Encrypt(w, lock)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(aw, identity.String()+"\n"); err != nil {
			return err
		}
		return aw.Close()
	})
	if err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	err = writeKeyFile(e.publicKeyPath, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, identity.Recipient().String()+"\n")
		return err
	})
	if err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	e.mu.Lock()
	e.recipient = identity.Recipient()
	e.mu.Unlock()
	return nil
}

// writeKeyFile writes a key through a temporary file in the same directory
// and renames it into place.
func writeKeyFile(path string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Encrypt streams r to w encrypted to the public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return err
	}

	aw, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(aw, r); err != nil {
		return fmt.Errorf("encrypting object: %w", err)
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("finishing encryption: %w", err)
	}
	return nil
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recipient != nil {
		return e.recipient, nil
	}

	f, err := os.Open(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("opening public key: %w", err)
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("parsing public key %s: %w", e.publicKeyPath, err)
	}
	if len(recipients) != 1 {
		return nil, fmt.Errorf("public key %s holds %d recipients, want 1", e.publicKeyPath, len(recipients))
	}
	e.recipient = recipients[0]
	return e.recipient, nil
}

// Unlock opens the private key with passphrase. A passphrase that does not
// match fails with ErrBadPassphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (lfu.DecryptionContext, error) {
	f, err := os.Open(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}
	defer f.Close()

	key, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating passphrase identity: %w", err)
	}
	r, err := age.Decrypt(bufio.NewReader(f), key)
	if errors.Is(err, age.ErrIncorrectIdentity) {
		return nil, ErrBadPassphrase
	}
	if err != nil {
		return nil, fmt.Errorf("opening private key %s: %w", e.privateKeyPath, err)
	}

	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) != 1 {
		return nil, fmt.Errorf("private key %s holds %d identities, want 1", e.privateKeyPath, len(identities))
	}
	return &AgeDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// AgeDecryptionContext holds an unlocked identity.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ lfu.DecryptionContext = (*AgeDecryptionContext)(nil)

func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	ar, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening object: %w", err)
	}
	if _, err := io.Copy(w, ar); err != nil {
		return fmt.Errorf("decrypting object: %w", err)
	}
	return nil
}
