package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/config"
	"github.com/ratelimitd/ratelimitd/internal/metrics"
	"github.com/ratelimitd/ratelimitd/internal/store"
	"github.com/ratelimitd/ratelimitd/transport/httpapi"
	"github.com/ratelimitd/ratelimitd/transport/msgpack"
	"github.com/ratelimitd/ratelimitd/transport/rpc"

	nativesrv "github.com/ratelimitd/ratelimitd/internal/server/native"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rate-limiting daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v)
		},
	}

	flags := cmd.Flags()
	flags.String("store-policy", "", "store eviction policy: periodic|probabilistic|adaptive|arena")
	flags.Int("capacity-hint", 0, "initial map capacity hint")
	flags.Duration("cleanup-interval", 0, "periodic store sweep interval")
	flags.Float64("cleanup-probability", 0, "probabilistic store sweep probability")
	flags.Duration("adaptive-min-interval", 0, "adaptive store minimum sweep interval")
	flags.Duration("adaptive-max-interval", 0, "adaptive store maximum sweep interval")
	flags.Int("adaptive-max-operations", 0, "adaptive store operation count ceiling between sweeps")
	flags.Int("arena-capacity", 0, "arena store fixed key capacity")
	flags.Int("inbox-size", 0, "actor inbox bound")
	flags.String("native-addr", "", "native protocol bind address")
	flags.String("http-addr", "", "JSON/HTTP bind address")
	flags.String("rpc-addr", "", "gRPC bind address")
	flags.String("msgpack-addr", "", "MessagePack transport bind address")
	flags.String("log-level", "", "log level: debug|info|warn|error")

	for _, name := range []string{
		"store-policy", "capacity-hint", "cleanup-interval", "cleanup-probability",
		"adaptive-min-interval", "adaptive-max-interval", "adaptive-max-operations",
		"arena-capacity", "inbox-size", "native-addr", "http-addr", "rpc-addr",
		"msgpack-addr", "log-level",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func runServe(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("ratelimitd: invalid configuration: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	s, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("ratelimitd: %w", err)
	}

	a := actor.New(s, cfg.InboxSize)
	go a.Run()
	handle := actor.NewHandle(a)

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	native := nativesrv.New(cfg.NativeAddr, handle, log)
	nativeErr := make(chan error, 1)
	go func() { nativeErr <- native.ListenAndServe(ctx) }()

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handle, m, log),
	}
	httpErr := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErr <- err
		}
	}()

	rpcLis, err := net.Listen("tcp", cfg.RPCAddr)
	if err != nil {
		cancel()
		return fmt.Errorf("ratelimitd: rpc listen: %w", err)
	}
	grpcSrv := rpc.NewGRPCServer(rpc.NewServer(handle))
	grpcErr := make(chan error, 1)
	go func() { grpcErr <- grpcSrv.Serve(rpcLis) }()

	msgpackSrv := msgpack.New(cfg.MsgpackAddr, handle, m, log)
	msgpackErr := make(chan error, 1)
	go func() { msgpackErr <- msgpackSrv.ListenAndServe(ctx) }()

	log.WithFields(logrus.Fields{
		"native":  cfg.NativeAddr,
		"http":    cfg.HTTPAddr,
		"rpc":     cfg.RPCAddr,
		"msgpack": cfg.MsgpackAddr,
		"policy":  cfg.StorePolicy,
	}).Info("ratelimitd started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down")
	case err := <-nativeErr:
		log.WithError(err).Error("native listener failed")
		cancel()
		return err
	case err := <-httpErr:
		log.WithError(err).Error("http listener failed")
		cancel()
		return err
	case err := <-grpcErr:
		log.WithError(err).Error("grpc listener failed")
		cancel()
		return err
	case err := <-msgpackErr:
		log.WithError(err).Error("msgpack listener failed")
		cancel()
		return err
	}

	cancel()
	grpcSrv.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not complete cleanly")
	}
	if err := native.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("native listener had connections still draining at shutdown deadline")
	}
	if err := msgpackSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("msgpack listener had connections still draining at shutdown deadline")
	}

	// Safe to stop the actor only once every transport's in-flight Throttle
	// calls have returned: grpcSrv.GracefulStop and the Shutdown calls above
	// both block until their own in-flight handlers finish.
	a.Stop()
	log.Info("ratelimitd exited")
	return nil
}

func buildStore(cfg config.Config) (store.Store, error) {
	switch cfg.StorePolicy {
	case config.PolicyPeriodic:
		return store.NewPeriodicStore(cfg.CapacityHint, cfg.CleanupInterval), nil
	case config.PolicyProbabilistic:
		return store.NewProbabilisticStore(cfg.CapacityHint, cfg.CleanupProb), nil
	case config.PolicyAdaptive:
		return store.NewAdaptiveStore(cfg.CapacityHint, cfg.AdaptiveMin, cfg.AdaptiveMax, cfg.AdaptiveMaxOps), nil
	case config.PolicyArena:
		return store.NewArenaStore(cfg.ArenaCapacity), nil
	default:
		return nil, fmt.Errorf("unknown store policy %q", cfg.StorePolicy)
	}
}
