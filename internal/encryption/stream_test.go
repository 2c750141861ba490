package encryption

import (
	"bytes"
	"io"
	"testing"
)

func TestEncryptReader(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	plain := bytes.Repeat([]byte("0123456789"), 5000)

	rc := EncryptReader(e, bytes.NewReader(plain))
	defer rc.Close()
	encrypted, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	ctx, _ := e.Unlock("")
	var decrypted bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader(encrypted), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(decrypted.Bytes(), plain) {
		t.Errorf("round-trip through EncryptReader lost data: got %d bytes, want %d", decrypted.Len(), len(plain))
	}
}

func TestEncryptReader_PropagatesError(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t) // no keys on disk
	rc := EncryptReader(e, bytes.NewReader([]byte("data")))
	defer rc.Close()
	if _, err := io.ReadAll(rc); err == nil {
		t.Error("ReadAll() expected error when encryption fails")
	}
}
