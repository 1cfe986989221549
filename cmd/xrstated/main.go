// Command xrstated runs an xrstate runtime as a daemon: it builds the
// system from config, feeds it from an optional serial tracking device,
// and serves debug, metrics, and health endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.bug.st/serial"

	"github.com/banshee-data/xrstate/internal/admin"
	"github.com/banshee-data/xrstate/internal/config"
	"github.com/banshee-data/xrstate/internal/device/serialdev"
	"github.com/banshee-data/xrstate/internal/journal"
	"github.com/banshee-data/xrstate/internal/metrics"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/serialmux"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/telemetry"
	"github.com/banshee-data/xrstate/internal/timeutil"
	"github.com/banshee-data/xrstate/internal/version"
	"github.com/banshee-data/xrstate/internal/xrapi"
)

// options are the command line settings. Flags that are set override the
// config file and environment.
type options struct {
	configPath   string
	listen       string
	healthListen string
	journalPath  string
	serialPort   string
	otlpEndpoint string
	extensions   []string
	demo         bool
	showVersion  bool
}

func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("xrstated", pflag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", config.DefaultConfigPath, "path to the runtime config JSON")
	fs.StringVar(&o.listen, "listen", "", "admin/metrics HTTP listen address")
	fs.StringVar(&o.healthListen, "health-listen", "", "gRPC health listen address (empty disables)")
	fs.StringVar(&o.journalPath, "journal", "", "sqlite event journal path (empty disables)")
	fs.StringVar(&o.serialPort, "serial-port", "", "serial tracking device path (empty disables)")
	fs.StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace endpoint URL (empty disables)")
	fs.StringSliceVar(&o.extensions, "extensions", nil, "extensions to enable, comma separated")
	fs.BoolVar(&o.demo, "demo", false, "drive a demo session through the frame loop")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	err := fs.Parse(args)
	return o, fs, err
}

// loadConfig reads the config file and environment, then applies set
// flags. A missing file at the default path means all defaults.
func loadConfig(o options, fs *pflag.FlagSet) (*config.RuntimeConfig, error) {
	cfg, err := config.LoadRuntimeConfig(o.configPath)
	if err != nil {
		if !fs.Changed("config") && errors.Is(err, os.ErrNotExist) {
			cfg = config.EmptyRuntimeConfig()
		} else {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if fs.Changed("listen") {
		cfg.AdminListen = &o.listen
	}
	if fs.Changed("health-listen") {
		cfg.HealthListen = &o.healthListen
	}
	if fs.Changed("journal") {
		cfg.JournalPath = &o.journalPath
	}
	if fs.Changed("serial-port") {
		cfg.SerialPort = &o.serialPort
	}
	if fs.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = &o.otlpEndpoint
	}
	if fs.Changed("extensions") {
		cfg.Extensions = o.extensions
	}
	return cfg, cfg.Validate()
}

func main() {
	o, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("xrstated: %v", err)
	}
	if o.showVersion {
		fmt.Printf("xrstated %s\n", version.String())
		return
	}
	cfg, err := loadConfig(o, fs)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, o.demo); err != nil {
		log.Fatalf("xrstated: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// run builds the runtime from cfg and serves until ctx is done.
func run(ctx context.Context, cfg *config.RuntimeConfig, demo bool) error {
	monitoring.SetErrorLogging(cfg.GetLogErrors())

	shutdownTracing, err := telemetry.Setup(ctx, "xrstated", version.Version, cfg.GetOTLPEndpoint())
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	var (
		wg   sync.WaitGroup
		inst *session.Instance
		feed *serialdev.Device
		port *serialmux.Mux[serial.Port]
	)
	if path := cfg.GetSerialPort(); path != "" {
		port, err = serialmux.Open(path, serialmux.PortOptions{
			BaudRate: cfg.GetSerialBaudRate(),
			DataBits: cfg.GetSerialDataBits(),
			StopBits: cfg.GetSerialStopBits(),
			Parity:   cfg.GetSerialParity(),
		})
		if err != nil {
			return err
		}
		defer port.Close()
		inputs, caps := feedInputs(cfg.GetCapabilities())
		feed = serialdev.New(serialdev.Options{
			Name:         path,
			Inputs:       inputs,
			Capabilities: caps,
			Now:          func() int64 { return inst.Time().MonotonicNow() },
			Commands:     port,
		})
	}

	sys, err := buildSystem(cfg, feed)
	if err != nil {
		return err
	}
	exts, err := session.NewExtensionSet(cfg.GetExtensions()...)
	if err != nil {
		return fmt.Errorf("extensions: %w", err)
	}
	inst, err = session.NewInstance(session.Options{
		Clock:              timeutil.RealClock{},
		TimeOffset:         cfg.GetTimeOffset(),
		Extensions:         exts,
		System:             sys,
		EventQueueCapacity: cfg.GetEventQueueCapacity(),
	})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	m := metrics.New(inst)
	rt, err := xrapi.New(xrapi.Options{Instance: inst, Observer: m})
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	log.Printf("runtime %s ready: system=%q extensions=%v", inst.ID(), sys.Name, exts.Names())

	if port != nil {
		id, lines := port.Subscribe()
		defer port.Unsubscribe(id)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := port.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := feed.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial feed stopped: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	admin.AttachRoutes(mux, rt)
	mux.Handle("/metrics", m.Handler())
	if port != nil {
		port.AttachAdminRoutes(mux)
	}

	if path := cfg.GetJournalPath(); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.AttachAdminRoutes(mux); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := j.Run(ctx, inst); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("journal stopped: %v", err)
			}
		}()
	}

	if addr := cfg.GetHealthListen(); addr != "" {
		hs, err := newHealthServer(addr)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.Serve(ctx, inst); err != nil {
				log.Printf("health server stopped: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		serveAdmin(ctx, cfg.GetAdminListen(), mux)
	}()

	if demo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runDemo(ctx, rt); err != nil {
				log.Printf("demo session failed: %v", err)
			}
		}()
	}

	wg.Wait()
	return nil
}

func serveAdmin(ctx context.Context, addr string, mux *http.ServeMux) {
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("admin HTTP listening at %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
