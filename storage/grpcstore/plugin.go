package grpcstore

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/registry"
)

var (
	flagTarget      string
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "grpc",
		Description: "gRPC envelope store client (talks to szdat-stored)",
		Usage:       registry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "gRPC target host:port (for --backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 10*time.Second, "Per-RPC timeout (for --backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagTarget, flagTimeout, flagMaxMsgBytes)
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			timeout := 10 * time.Second
			if v := cfg["timeout"]; v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid timeout %q: %w", v, err)
				}
				timeout = d
			}
			maxMsg := 0
			if v := cfg["max_msg_bytes"]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid max_msg_bytes %q: %w", v, err)
				}
				maxMsg = n
			}
			return open(cfg["target"], timeout, maxMsg)
		},
	})
}

func open(target string, timeout time.Duration, maxMsgBytes int) (storage.Store, func() error, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil, fmt.Errorf("missing --grpc-target")
	}
	client, err := Dial(target, DialOptions{MaxMsgBytes: maxMsgBytes})
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = timeout
	return client, client.Close, nil
}
