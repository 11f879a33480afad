package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first store of named private keys.
//
// EXPERIMENTAL: this filesystem-backed surface is not part of the envelope
// protocol and may change.
//
// Each key lives in <Directory>/<name>.key as its text form plus a newline,
// with mode 0600. Existing keys are never replaced unless asked to.
type KeyStore struct {
	Directory string
}

const keySuffix = ".key"

// DefaultDirectory returns ~/.szdat/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".szdat", "keys"), nil
}

// OpenKeyStore returns a KeyStore rooted at directory, or at DefaultDirectory
// when directory is empty. Nothing is created until a key is saved.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

// CheckKeyName accepts names made of ASCII letters, digits, '-' and '_'.
func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

func (ks *KeyStore) pathFor(name string) string {
	return filepath.Join(ks.Directory, name+keySuffix)
}

// Save stores k under name and returns the file path.
// Without overwrite, an existing key of the same name is an error.
func (ks *KeyStore) Save(name string, k PrivateKey, overwrite bool) (string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	if k.IsZero() {
		return "", errors.New("keys: missing private key")
	}
	if err := os.MkdirAll(ks.Directory, 0o700); err != nil {
		return "", err
	}
	filePath := ks.pathFor(name)
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := file.WriteString(EncodePrivateKey(k) + "\n"); err != nil {
		return "", err
	}
	return filePath, file.Close()
}

// Load reads the private key stored under name.
func (ks *KeyStore) Load(name string) (PrivateKey, error) {
	if err := CheckKeyName(name); err != nil {
		return PrivateKey{}, err
	}
	data, err := os.ReadFile(ks.pathFor(name))
	if err != nil {
		return PrivateKey{}, err
	}
	return ParsePrivateKey(string(data))
}

// List returns the stored key names, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keySuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), keySuffix)
		if CheckKeyName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
