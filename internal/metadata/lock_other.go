//go:build !unix

package metadata

import (
	"os"
	"sync"
)

var locks sync.Map // path -> *sync.Mutex

// lockFile serializes writers within this process only.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	mu, _ := locks.LoadOrStore(path, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return func() {
		mu.(*sync.Mutex).Unlock()
		f.Close()
	}, nil
}
