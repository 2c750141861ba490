package encryption

import (
	"io"

	"lfu-go/internal/lfu"
)

// EncryptReader returns a reader producing the ciphertext of r. Encryption
// runs in a goroutine that stops when the returned reader is closed.
func EncryptReader(enc lfu.Encryptor, r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(enc.Encrypt(r, pw))
	}()
	return pr
}
