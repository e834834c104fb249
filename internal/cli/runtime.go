package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/webmondiag/webmondiag/internal/api"
	"github.com/webmondiag/webmondiag/internal/config"
	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/internal/journal"
	"github.com/webmondiag/webmondiag/internal/journal/sqlite"
	"github.com/webmondiag/webmondiag/internal/logging"
	"github.com/webmondiag/webmondiag/internal/observability"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// Endpoint flags shared by serve and form.
var (
	endpointHost string
	endpointPort string
	endpointPath string
)

func addEndpointFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&endpointHost, "hostname", "n", "", "hostname or address to bind (default 127.0.0.1)")
	cmd.Flags().StringVarP(&endpointPort, "port", "p", "", "port to listen on (required unless set in config)")
	cmd.Flags().StringVar(&endpointPath, "path", "", "endpoint path (default /)")
}

// frontEnd is where the coordinator reports to. A nil log narrates through
// the process logger instead.
type frontEnd struct {
	view diag.View
	log  diag.EventLog

	// ownsTerminal keeps the process logger off stdout and stderr.
	ownsTerminal bool
}

// instance is one bootstrapped endpoint with its supporting services.
type instance struct {
	cfg      *config.Config
	logger   *logrus.Logger
	coord    *diag.Coordinator
	recorder *journal.Recorder
	control  *api.Server

	closers []func()
}

// bootstrap loads configuration, validates the endpoint parameters and
// wires the endpoint, journal, tracing and control API. The endpoint is
// configured but not started.
func bootstrap(cmd *cobra.Command, fe frontEnd) (*instance, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ch, err := endpointChange(cmd, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	rt := &instance{cfg: cfg}

	var logOut io.Writer = os.Stderr
	if fe.ownsTerminal {
		logOut = io.Discard
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, logCloser, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}
	rt.logger = logger
	rt.closers = append(rt.closers, func() { logCloser.Close() })

	shutdownTracer, err := observability.InitTracer(cfg.Tracing)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.WithError(err).Warn("flushing traces")
		}
	})

	var events diag.MultiLog
	if fe.log != nil {
		events = append(events, fe.log)
	} else {
		events = append(events, logging.EventLog(logger))
	}

	var journalStore journal.Storage
	if cfg.Journal.Enabled {
		store, err := openJournal(cmd.Context(), cfg.Journal.Path)
		if err != nil {
			logger.WithError(err).Warn("event journal disabled")
		} else {
			journalStore = store
			rt.recorder = journal.NewRecorder(store, logger)
			events = append(events, rt.recorder)
			rt.closers = append(rt.closers, func() { store.Close() })
			logger.WithField("session", rt.recorder.SessionID()).Debug("journal session started")
		}
	}

	state := diag.NewStore(diag.DefaultState())
	responder := diag.NewResponder(state,
		diag.WithLogger(logger.WithField("component", "endpoint")),
		diag.WithTracer(otel.Tracer("webmondiag/diag")),
	)
	view := fe.view
	if view == nil {
		view = diag.NopView
	}
	rt.coord = diag.NewCoordinator(state, responder, view, events)
	rt.closers = append(rt.closers, func() { rt.coord.StopServer() })

	if _, err := rt.coord.Apply(ch); err != nil {
		rt.close()
		return nil, err
	}

	if cfg.Control.Enabled {
		apiCfg := &api.Config{
			Addr:   cfg.Control.Addr,
			Events: journalStore,
			Logger: logger.WithField("component", "control"),
		}
		if rt.recorder != nil {
			apiCfg.SessionID = rt.recorder.SessionID()
		}
		rt.startControl(api.New(apiCfg, rt.coord))
	}

	return rt, nil
}

// endpointChange merges command-line flags over the configured endpoint
// and rejects malformed startup parameters.
func endpointChange(cmd *cobra.Command, ep config.EndpointConfig) (types.Change, error) {
	host := ep.Hostname
	if cmd.Flags().Changed("hostname") {
		host = endpointHost
	}
	if err := diag.ValidateHostname(host); err != nil {
		return types.Change{}, fmt.Errorf("invalid hostname: %s", host)
	}

	var port uint16
	switch {
	case cmd.Flags().Changed("port"):
		p, err := diag.ParsePort(endpointPort)
		if err != nil {
			return types.Change{}, fmt.Errorf("invalid port value: %s", endpointPort)
		}
		port = p
	case ep.Port > 0 && ep.Port <= 65535:
		port = uint16(ep.Port)
	case ep.Port != 0:
		return types.Change{}, fmt.Errorf("invalid port value: %d", ep.Port)
	default:
		return types.Change{}, errors.New("port not specified (use --port or endpoint.port)")
	}

	path := ep.Path
	if cmd.Flags().Changed("path") {
		path = endpointPath
	}

	ch := types.Change{
		Hostname:       &host,
		Port:           &port,
		Path:           &path,
		ListenEnabled:  &ep.Listen,
		RespondEnabled: &ep.Respond,
		DelayEnabled:   &ep.DelayEnabled,
		DelayMs:        &ep.DelayMs,
		StatusCode:     &ep.StatusCode,
		EmptyBody:      &ep.EmptyBody,
	}
	if ep.BodyFile != "" {
		ch.BodyFile = &ep.BodyFile
	} else if ep.Body != "" {
		ch.Body = &ep.Body
	}
	return ch, nil
}

// openJournal initializes the SQLite journal at path.
func openJournal(ctx context.Context, path string) (*sqlite.SQLiteStorage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := config.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	store, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return store, nil
}

// startControl serves the control API in the background. A failed bind
// only disables the API.
func (rt *instance) startControl(srv *api.Server) {
	if err := srv.Listen(); err != nil {
		rt.logger.WithError(err).Warn("control API disabled")
		return
	}
	rt.control = srv

	go func() {
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.WithError(err).Error("control API failed")
		}
	}()
	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
}

// close releases everything in reverse order of acquisition.
func (rt *instance) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
