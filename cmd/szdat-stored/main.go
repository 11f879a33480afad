package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/grpcstore"
	"github.com/gordonbrander/szdat/storage/registry"
	"github.com/gordonbrander/szdat/storage/storeconfig"

	_ "github.com/gordonbrander/szdat/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("szdat-stored", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "Store backend name")
	config := fs.String("config", "", "Store config file (.json, .yaml); overrides --backend")
	logLevel := fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	maxMsgBytes := fs.Int("max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --log-level: %v\n", err)
		return 2
	}
	log.SetOutput(errOut)
	log.SetLevel(level)

	store, closeFn, err := openStore(*backend, *config)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				log.WithError(err).Warn("closing store")
			}
		}()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.WithError(err).Error("listen")
		return 1
	}

	logger := log.WithField("component", "szdat-stored")
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(grpcstore.LoggingInterceptor(logger))}
	if *maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(*maxMsgBytes), grpc.MaxSendMsgSize(*maxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	grpcstore.RegisterEnvelopeStoreServer(s, &grpcstore.Server{Store: store})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.WithField("signal", sig.String()).Info("shutting down")
		s.GracefulStop()
	}()

	logger.WithFields(log.Fields{"addr": lis.Addr().String(), "backend": *backend, "config": *config}).Info("listening")
	if err := s.Serve(lis); err != nil {
		logger.WithError(err).Error("serve")
		return 1
	}
	return 0
}

func openStore(backend, config string) (storage.Store, func() error, error) {
	if config == "" {
		return registry.Open(backend, registry.UsageDaemon)
	}
	cfg, err := storeconfig.LoadFile(config)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Open(registry.UsageDaemon, "")
}
