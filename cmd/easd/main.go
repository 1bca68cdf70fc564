package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"xdao.co/attest/config"
	"xdao.co/attest/event"
	"xdao.co/attest/ledger"
	"xdao.co/attest/ledgerrpc"
	"xdao.co/attest/resolver"
	"xdao.co/attest/schema"
	"xdao.co/attest/storage/archive"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, errOut io.Writer) int {
	d, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	fs := flag.NewFlagSet("easd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&d.ListenAddr, "listen", d.ListenAddr, "listen address ($EASD_LISTEN_ADDR)")
	fs.StringVar(&d.ConfigFile, "config", d.ConfigFile, "genesis YAML file ($EASD_CONFIG)")
	fs.StringVar(&d.LogLevel, "log-level", d.LogLevel, "debug|info|warn|error ($EASD_LOG_LEVEL)")
	fs.StringVar(&d.LogFormat, "log-format", d.LogFormat, "json|console ($EASD_LOG_FORMAT)")
	fs.StringVar(&d.Compliance, "compliance", d.Compliance, "permissive|strict reference policy ($EASD_COMPLIANCE)")
	fs.StringVar(&d.ArchiveDir, "archive-dir", d.ArchiveDir, "localfs archive directory when the config has no archive section ($EASD_ARCHIVE_DIR)")
	listKinds := fs.Bool("list-resolver-kinds", false, "List resolver kinds usable in the config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listKinds {
		for _, k := range resolver.Kinds() {
			fmt.Fprintln(errOut, k)
		}
		return 0
	}
	if err := d.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	log, err := d.Logger()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	if err := serve(ctx, d, log); err != nil {
		log.Error("easd stopped", zap.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, d config.Daemon, log *zap.Logger) error {
	var file config.File
	if d.ConfigFile != "" {
		f, err := config.Load(d.ConfigFile)
		if err != nil {
			return err
		}
		if err := f.Validate(); err != nil {
			return err
		}
		file = f
	}
	mode, err := d.ComplianceMode(file)
	if err != nil {
		return err
	}

	sink := logSink{log: log.Named("events")}
	dir := resolver.NewDirectory()
	if err := file.BindResolvers(dir); err != nil {
		return err
	}
	reg := schema.NewRegistry(schema.WithLogger(log.Named("schema")), schema.WithSink(sink))
	genesis, err := file.RegisterSchemas(reg)
	if err != nil {
		return err
	}

	ac := d.ArchiveConfig(file)
	cas, err := archive.Open(ac)
	if err != nil {
		return err
	}

	l := ledger.New(reg, dir,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithSink(sink),
		ledger.WithArchive(cas),
		ledger.WithReferencePolicy(mode),
	)

	lis, err := net.Listen("tcp", d.ListenAddr)
	if err != nil {
		return err
	}
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(ledgerrpc.LoggingInterceptor(log.Named("rpc")))}
	if d.MaxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(d.MaxMsgBytes), grpc.MaxSendMsgSize(d.MaxMsgBytes))
	}
	srv := grpc.NewServer(opts...)
	ledgerrpc.RegisterLedgerServer(srv, ledgerrpc.NewServer(l, log.Named("rpc")))

	log.Info("easd listening",
		zap.String("addr", lis.Addr().String()),
		zap.Stringer("compliance", mode),
		zap.Int("resolvers", len(dir.Addresses())),
		zap.Int("genesis_schemas", len(genesis)),
		zap.Int("archive_backends", len(ac.Backends)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("timeout", d.ShutdownTimeout))
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(d.ShutdownTimeout):
			srv.Stop()
		}
		return nil
	})
	return g.Wait()
}

// logSink writes committed events to the log.
type logSink struct{ log *zap.Logger }

func (s logSink) Emit(events ...event.Event) {
	for _, e := range events {
		s.log.Info(string(e.Type),
			zap.Stringer("uid", e.UID),
			zap.Stringer("schema", e.Schema),
			zap.Stringer("attester", e.Attester),
			zap.Stringer("recipient", e.Recipient),
			zap.Uint64("time", e.Time),
		)
	}
}
