package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/persistence/indexdb"
	persistlog "scrapyard.dev/internal/persistence/log"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/transport/ws"
	"scrapyard.dev/internal/tuning"
)

type serverFlags struct {
	addr        string
	allowRemote bool
	configDir   string
	tuningPath  string
	dataDir     string
	slot        string
	funds       float64
	disableDB   bool
	loadLatest  bool
	watch       bool
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:           "scrapyard-server",
		Short:         "Serve the part and resource ledger over websocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(f.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx, cancel := signalContext()
			defer cancel()
			return run(ctx, f, logger)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "127.0.0.1:8080", "http listen address")
	fl.BoolVar(&f.allowRemote, "allow_remote", false, "accept plugin connections from other hosts and origins")
	fl.StringVar(&f.configDir, "configs", "./configs", "config directory")
	fl.StringVar(&f.tuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fl.StringVar(&f.dataDir, "data", "./data", "runtime data directory")
	fl.StringVar(&f.slot, "slot", "default", "save slot to resume from")
	fl.Float64Var(&f.funds, "funds", 0, "starting treasury balance")
	fl.BoolVar(&f.disableDB, "disable_db", false, "disable the sqlite settlement index")
	fl.BoolVar(&f.loadLatest, "load_latest", true, "load the latest save of --slot on start")
	fl.BoolVar(&f.watch, "watch_tuning", true, "reload tuning.yaml when it changes")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.Named("server"), nil
}

func run(ctx context.Context, f serverFlags, logger *zap.Logger) error {
	cats, err := catalogs.Load(f.configDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	tp := strings.TrimSpace(f.tuningPath)
	if tp == "" {
		tp = filepath.Join(f.configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Warn("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return err
	}

	var idx *indexdb.SQLiteIndex
	if !f.disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(f.dataDir, "index", "scrapyard.sqlite"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(f.configDir, cats, tune); err != nil {
			logger.Warn("index: upsert catalogs", zap.Error(err))
		}
	}

	sess, err := session.New(session.Config{
		Tuning:   tune,
		Catalogs: cats,
		Treasury: settlement.NewFunds(f.funds),
	}, logger.Named("session"))
	if err != nil {
		return err
	}

	journal := persistlog.NewSettlementLogger(f.dataDir)
	defer journal.Close()
	sess.SetSettlementLogger(journal)
	if idx != nil {
		sess.SetIndex(idx)
	}

	savesDir := filepath.Join(f.dataDir, "saves")
	if f.loadLatest {
		if path := savefile.Latest(savesDir, f.slot); path != "" {
			h, root, err := savefile.ReadNode(path)
			if err != nil {
				return fmt.Errorf("read save: %w", err)
			}
			if _, err := sess.Load(root); err != nil {
				return fmt.Errorf("load save %s: %w", filepath.Base(path), err)
			}
			logger.Info("resumed from save",
				zap.String("file", filepath.Base(path)),
				zap.Time("saved_at", h.SavedAt),
			)
		}
	}

	saveCh := make(chan session.SaveEntry, 4)
	sess.SetSaveSink(saveCh)
	saver := &savefile.Writer{
		Dir:      savesDir,
		KeepLast: tune.Saves.KeepLast,
		Log:      logger.Named("saves"),
		OnWritten: func(path string, h savefile.Header) {
			if idx != nil {
				idx.RecordSave(path, h)
			}
		},
	}

	srv := &http.Server{
		Addr:              f.addr,
		Handler:           newMux(sess, idx, logger, ws.Options{AllowRemote: f.allowRemote}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sess.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session: %w", err)
		}
		return nil
	})
	g.Go(func() error { return saver.Run(gctx, saveCh) })
	if f.watch {
		g.Go(func() error {
			if err := tuning.Watch(gctx, tp, logger.Named("tuning"), sess.Reload); err != nil {
				logger.Warn("tuning watch disabled", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", f.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
