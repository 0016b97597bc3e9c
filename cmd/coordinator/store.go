package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/config"
	"github.com/dreamware/worldgate/internal/storage"
)

// openStore picks the store behind the metrics backend: an external NATS
// server, an embedded one, or process memory. The returned func releases
// whatever was opened.
func openStore(ctx context.Context, mc config.MetricsConfig, logger *zap.Logger) (storage.Store, func(), error) {
	url := mc.NATSURL
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if mc.Embedded {
		ns, dir, err := startEmbeddedNATS()
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			ns.Shutdown()
			ns.WaitForShutdown()
			_ = os.RemoveAll(dir)
		})
		url = ns.ClientURL()
		logger.Info("embedded NATS server started", zap.String("url", url))
	}

	if url == "" {
		logger.Info("metrics counters kept in memory")
		return storage.NewMemoryStore(), release, nil
	}

	store, nc, err := dialNATSStore(ctx, url, mc.Bucket)
	if err != nil {
		release()
		return nil, nil, err
	}
	closers = append(closers, nc.Close)
	logger.Info("metrics counters stored in NATS KV",
		zap.String("url", url),
		zap.String("bucket", mc.Bucket))
	return store, release, nil
}

func dialNATSStore(ctx context.Context, url, bucket string) (*storage.NATSStore, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("worldgate"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	store, err := storage.OpenNATSStore(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return store, nc, nil
}

// startEmbeddedNATS runs a JetStream-enabled server on a random local port
// with its store in a fresh temporary directory.
func startEmbeddedNATS() (*server.Server, string, error) {
	dir, err := os.MkdirTemp("", "worldgate-nats-")
	if err != nil {
		return nil, "", err
	}
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  dir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, "", fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		_ = os.RemoveAll(dir)
		return nil, "", errors.New("embedded NATS server not ready within timeout")
	}
	return ns, dir, nil
}
