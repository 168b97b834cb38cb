// puntod is a background daemon that fixes text typed in the wrong keyboard
// layout. It watches physical keystrokes, recognizes words that only make
// sense on the opposite layout (QWERTY vs JCUKEN), and retypes them live. A
// lone tap of a configured modifier converts the current selection instead.
//
//	puntod                 Run the daemon
//	puntod -check          Report input backend availability and exit
//	puntod -version        Print the version and exit
//
// The daemon is controlled at runtime through puntoctl over a Unix socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sergeivaskov/punto/internal/config"
	"github.com/sergeivaskov/punto/internal/corrector"
	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/input"
	"github.com/sergeivaskov/punto/internal/ipc"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
	"github.com/sergeivaskov/punto/internal/userdict"
)

const version = "1.0.0"

var (
	configPath  = flag.String("config", "", "path to config file (default: data dir config.toml)")
	checkFlag   = flag.Bool("check", false, "report input backend availability and exit")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println("puntod " + version)
		return
	}
	if *checkFlag {
		os.Exit(runCheck())
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "puntod: %v\n", err)
		os.Exit(1)
	}
}

// runCheck probes the key-capture backend and prints the verdict.
func runCheck() int {
	ok, detail := input.NewKeySource().Available()
	if ok {
		fmt.Printf("key capture: OK (%s)\n", detail)
		return 0
	}
	fmt.Printf("key capture: UNAVAILABLE (%s)\n", detail)
	return 1
}

func run() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()
	logging.SetDefault(log)

	if created {
		log.Info("wrote default configuration", "path", path)
	}
	log.Info("puntod starting", "version", version)

	// Word lists load in the background; correction starts deciding as soon
	// as they are in.
	ix := dictionary.New(log.WithComponent("dictionary"))

	ud, err := userdict.Open(cfg.UserDict.Path, log.WithComponent("userdict"))
	if err != nil {
		return fmt.Errorf("open user dictionary: %w", err)
	}
	defer ud.Close()

	mergeUserDict := func() {
		if err := ud.MergeInto(ix); err != nil {
			log.Warn("user dictionary merge failed", "error", err)
		}
	}
	ix.LoadAsync(cfg.Dictionaries.LatinPath, cfg.Dictionaries.CyrillicPath, mergeUserDict)

	if cfg.Dictionaries.WatchForChanges {
		watcher, err := dictionary.NewWatcher(ix,
			cfg.Dictionaries.LatinPath, cfg.Dictionaries.CyrillicPath,
			500*time.Millisecond, mergeUserDict, log.WithComponent("dictionary"))
		if err != nil {
			log.Warn("word list watcher unavailable", "error", err)
		} else if err := watcher.Start(); err != nil {
			log.Warn("word list watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	mapping, err := buildMapping(cfg, log)
	if err != nil {
		return err
	}

	deps := corrector.Deps{
		Source:    input.NewKeySource(),
		Typist:    input.NewTypist(),
		Clipboard: input.NewClipboard(),
		Switcher: input.NewSwitcher(input.SwitcherOptions{
			LatinSource:    cfg.Input.LatinSource,
			CyrillicSource: cfg.Input.CyrillicSource,
		}),
		Oracle:     input.NewOracle(),
		Dictionary: ix,
		Converter:  layout.NewConverter(mapping),
	}

	if ok, detail := deps.Source.Available(); !ok {
		return fmt.Errorf("key capture unavailable: %s", detail)
	}

	corr := corrector.New(cfg, deps, ud.IsExcluded, log.WithComponent("corrector"))
	if err := corr.Start(context.Background()); err != nil {
		return fmt.Errorf("start corrector: %w", err)
	}
	defer corr.Stop()

	// Config hot reload. Structural changes (socket path, input backends)
	// still need a restart.
	loader := config.NewLoader(path)
	if _, err := loader.Load(); err == nil {
		loader.OnChange(func(next *config.Config) {
			log.Info("configuration file changed; input and ipc changes apply on restart")
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config watch unavailable", "error", err)
		} else {
			defer loader.Close()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.IPC.Enabled {
		reload := func() error {
			ix.Load(cfg.Dictionaries.LatinPath, cfg.Dictionaries.CyrillicPath)
			mergeUserDict()
			return nil
		}
		shutdown := func() {
			select {
			case sigCh <- syscall.SIGTERM:
			default:
			}
		}
		handler := ipc.NewDaemonHandler(version, corr, ix, ud, reload, shutdown, log.WithComponent("ipc"))

		srvCfg := ipc.DefaultServerConfig(cfg.IPC.SocketPath)
		srvCfg.Version = version
		if cfg.IPC.TimeoutSec > 0 {
			srvCfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
		}
		server := ipc.NewServer(srvCfg, handler, log.WithComponent("ipc"))
		if err := server.Start(); err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
		defer server.Stop()
	}

	log.Info("puntod running")
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	return nil
}

// buildMapping loads the custom character mapping when one is configured.
func buildMapping(cfg *config.Config, log *logging.Logger) (*layout.Mapping, error) {
	if path := cfg.Corrector.CustomMappingPath; path != "" {
		m, err := layout.LoadCustomMapping(path)
		if err != nil {
			return nil, fmt.Errorf("load custom mapping: %w", err)
		}
		log.Info("loaded custom layout mapping", "path", path)
		return m, nil
	}
	return layout.NewMapping()
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "puntod",
	})
}
