package localfs

import (
	"flag"
	"fmt"

	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/registry"
)

var flagDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem envelope store (directory)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "Envelope store directory (for --backend=localfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagDir)
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			return open(cfg["dir"])
		},
	})
}

func open(dir string) (storage.Store, func() error, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("missing --localfs-dir")
	}
	s, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}
