package credentials

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	sealSaltLen  = 16
	sealNonceLen = 24
	sealKeyLen   = 32

	// Interactive scrypt parameters; the pair is sealed once per refresh,
	// not in any hot path.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrSealOpen indicates the sealed file could not be opened, either because
// the passphrase is wrong or the file was tampered with.
var ErrSealOpen = errors.New("credentials: cannot open sealed pair")

// SealedFileStore persists the pair sealed with a passphrase-derived key, for
// installs that opt into at-rest protection of the refresh token. File layout
// is salt || nonce || box.
type SealedFileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

// NewSealedFileStore returns a sealed store backed by the file at path.
func NewSealedFileStore(path, passphrase string) *SealedFileStore {
	return &SealedFileStore{path: path, passphrase: []byte(passphrase)}
}

func (s *SealedFileStore) Save(pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plain, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("credentials: encode pair: %w", err)
	}
	salt := make([]byte, sealSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credentials: salt: %w", err)
	}
	key, err := s.deriveKey(salt)
	if err != nil {
		return err
	}
	var nonce [sealNonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("credentials: nonce: %w", err)
	}
	out := make([]byte, 0, sealSaltLen+sealNonceLen+len(plain)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain, &nonce, key)
	return writeFileAtomic(s.path, out)
}

func (s *SealedFileStore) Load() (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Pair{}, false, nil
	}
	if err != nil {
		return Pair{}, false, fmt.Errorf("credentials: read %s: %w", s.path, err)
	}
	if len(data) < sealSaltLen+sealNonceLen+secretbox.Overhead {
		return Pair{}, false, ErrSealOpen
	}
	salt := data[:sealSaltLen]
	var nonce [sealNonceLen]byte
	copy(nonce[:], data[sealSaltLen:sealSaltLen+sealNonceLen])
	key, err := s.deriveKey(salt)
	if err != nil {
		return Pair{}, false, err
	}
	plain, ok := secretbox.Open(nil, data[sealSaltLen+sealNonceLen:], &nonce, key)
	if !ok {
		return Pair{}, false, ErrSealOpen
	}
	var pair Pair
	if err := json.Unmarshal(plain, &pair); err != nil {
		return Pair{}, false, fmt.Errorf("credentials: decode sealed pair: %w", err)
	}
	return pair, true, nil
}

func (s *SealedFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfPresent(s.path)
}

func (s *SealedFileStore) deriveKey(salt []byte) (*[sealKeyLen]byte, error) {
	raw, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, sealKeyLen)
	if err != nil {
		return nil, fmt.Errorf("credentials: derive key: %w", err)
	}
	var key [sealKeyLen]byte
	copy(key[:], raw)
	return &key, nil
}
