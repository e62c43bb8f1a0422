package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/giantswarm/hotpatch/internal/devserver"
	"github.com/giantswarm/hotpatch/internal/formatting"
	"github.com/giantswarm/hotpatch/internal/hmr"
	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/internal/transport"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

// WatchOptions tune watch mode beyond config.yaml.
type WatchOptions struct {
	// Resources are subscribed in addition to client.resources.
	Resources []resource.Resource

	// Formatter renders updates and issue lists. Defaults to console output.
	Formatter formatting.Formatter

	// Output receives rendered values. Defaults to stdout.
	Output io.Writer

	// Spinner shows a progress spinner on stderr while connecting.
	Spinner bool
}

// Services holds the components wired for one run mode.
type Services struct {
	Metrics *metrics.Recorder

	// Watch mode.
	Reconciler *hmr.Reconciler
	Client     *transport.Client
	Resources  []resource.Resource

	// Serve mode.
	Server     *devserver.Server
	Spool      *devserver.SpoolWatcher
	HTTPServer *http.Server

	printer *printer
	spinner *spinner.Spinner

	// onListen is called with the bound address in serve mode.
	onListen func(addr string)
}

// InitializeWatchServices wires a reconciler to a transport client.
func InitializeWatchServices(cfg *Config, opts WatchOptions) (*Services, error) {
	hc := cfg.HotpatchConfig
	if hc == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	formatter := opts.Formatter
	if formatter == nil {
		formatter = formatting.NewConsoleFormatter(formatting.Options{Format: formatting.FormatConsole})
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	s := &Services{
		Metrics:   metrics.NewRecorder(),
		Resources: mergeResources(hc.Client.Resources, opts.Resources),
		printer:   &printer{out: output, formatter: formatter},
	}
	if len(s.Resources) == 0 {
		return nil, fmt.Errorf("no resources to watch: set client.resources or pass resource paths")
	}

	if opts.Spinner {
		s.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.spinner.Suffix = " Connecting to " + hc.Client.URL
	}

	s.Client = transport.New(transport.Config{
		URL:             hc.Client.URL,
		InitialInterval: hc.Client.Reconnect.InitialInterval,
		MaxInterval:     hc.Client.Reconnect.MaxInterval,
		Metrics:         s.Metrics,
		OnConnect: func(connID string) {
			if s.spinner != nil {
				s.spinner.Stop()
			}
		},
		OnDisconnect: func(connID string, err error) {
			if s.spinner != nil {
				s.spinner.Suffix = " Reconnecting to " + hc.Client.URL
				s.spinner.Start()
			}
		},
	})

	s.Reconciler = hmr.New(hmr.Config{
		Outbound: s.Client,
		Metrics:  s.Metrics,
		Hooks: hmr.Hooks{
			BuildOK: func() {
				logging.Debug("Watch", "Build is healthy")
			},
			IssuesChanged: s.printer.issues,
			Error: func(err error) {
				s.printer.errorf("update stream error: %v", err)
			},
			Reset: func(reason string) {
				logging.Warn("Watch", "Discarded pending updates and issues: %s", reason)
			},
		},
	})

	logging.Debug("Watch", "Initialized watch services for %d resources", len(s.Resources))
	return s, nil
}

// InitializeServeServices wires the dev update server and its spool watcher.
func InitializeServeServices(cfg *Config) (*Services, error) {
	hc := cfg.HotpatchConfig
	if hc == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	s := &Services{Metrics: metrics.NewRecorder()}
	s.Server = devserver.New(devserver.Config{
		Missing: hc.Server.Missing,
		Metrics: s.Metrics,
	})
	s.HTTPServer = &http.Server{
		Addr:              hc.Server.Listen,
		Handler:           s.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if hc.Server.SpoolDir != "" {
		s.Spool = devserver.NewSpoolWatcher(devserver.SpoolConfig{
			Dir:             hc.Server.SpoolDir,
			RemoveProcessed: hc.Server.RemoveProcessed,
		}, s.Server)
	}
	return s, nil
}

// mergeResources concatenates lists, dropping resources with a key seen before.
func mergeResources(lists ...[]resource.Resource) []resource.Resource {
	seen := make(map[resource.Key]bool)
	var out []resource.Resource
	for _, list := range lists {
		for _, res := range list {
			key := res.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, res)
		}
	}
	return out
}

// printer writes rendered values; listeners and hooks may call it from
// different goroutines.
type printer struct {
	mu        sync.Mutex
	out       io.Writer
	formatter formatting.Formatter
}

func (p *printer) update(_ context.Context, msg protocol.ServerMessage) error {
	text, err := p.formatter.FormatUpdate(msg)
	if err != nil {
		return err
	}
	return p.write(text)
}

func (p *printer) issues(list []issues.Issue) {
	text, err := p.formatter.FormatIssues(list)
	if err != nil {
		logging.Error("Watch", err, "Failed to render issues")
		return
	}
	if err := p.write(text); err != nil {
		logging.Error("Watch", err, "Failed to print issues")
	}
}

func (p *printer) errorf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (p *printer) write(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, text)
	return err
}
