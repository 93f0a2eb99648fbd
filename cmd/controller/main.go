// Command controller runs the crackfleet coordination server: it reads
// a target shadow-style credential line, dispatches candidate chunks to
// connecting workers, and reports the cracked password (if any) when
// the fleet finishes.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/barrosov/crackfleet/internal/config"
	"github.com/barrosov/crackfleet/internal/controllersrv"
	"github.com/barrosov/crackfleet/internal/dispatch"
	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
	"github.com/barrosov/crackfleet/internal/metrics"
	"github.com/barrosov/crackfleet/internal/shadow"
)

type controllerOptions struct {
	shadowFile       string
	user             string
	port             int
	heartbeatSeconds int
	chunkSize        uint64
	configPath       string
	statusAddr       string
}

func newRootCmd() *cobra.Command {
	opts := &controllerOptions{}

	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Dispatch password-cracking chunks to a worker fleet",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runController(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.shadowFile, "shadow-file", "f", "", "path to a shadow-style credential file (required)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "username whose hash to crack (required)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", opts.port, "TCP port to listen on (required)")
	cmd.Flags().IntVarP(&opts.heartbeatSeconds, "heartbeat-seconds", "b", opts.heartbeatSeconds, "seconds between MSG_HEARTBEAT_REQ ticks (required)")
	cmd.Flags().Uint64VarP(&opts.chunkSize, "chunk-size", "c", opts.chunkSize, "candidates granted per chunk (required)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "optional YAML overlay, hot-reloaded (heartbeat_seconds, chunk_size)")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "optional address for the /status and /metrics HTTP surface")

	cmd.PreRunE = func(_ *cobra.Command, _ []string) error {
		if opts.shadowFile == "" {
			return fmt.Errorf("--shadow-file is required")
		}
		if opts.user == "" {
			return fmt.Errorf("--user is required")
		}
		if opts.port <= 0 || opts.port > 65535 {
			return fmt.Errorf("--port must be in 1..65535, got %d", opts.port)
		}
		if opts.heartbeatSeconds <= 0 {
			return fmt.Errorf("--heartbeat-seconds must be positive, got %d", opts.heartbeatSeconds)
		}
		if opts.chunkSize == 0 {
			return fmt.Errorf("--chunk-size must be positive")
		}
		return nil
	}

	return cmd
}

func runController(opts *controllerOptions) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	job, err := shadow.ParseFile(opts.shadowFile, opts.user)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	d := dispatch.New(opts.chunkSize)
	heartbeatInterval := time.Duration(opts.heartbeatSeconds) * time.Second
	srv := controllersrv.New(job, d, heartbeatInterval, logger)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv.Metrics = m

	if opts.configPath != "" {
		watcher := config.NewWatcher(
			config.Overlay{HeartbeatSeconds: opts.heartbeatSeconds, ChunkSize: int(opts.chunkSize)},
			logger,
			func(o config.Overlay) {
				if o.HeartbeatSeconds > 0 {
					srv.SetHeartbeatInterval(time.Duration(o.HeartbeatSeconds) * time.Second)
				}
				if o.ChunkSize > 0 {
					d.SetChunkSize(uint64(o.ChunkSize))
				}
			},
		)
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			if err := watcher.Start(opts.configPath, stop); err != nil {
				logger.WithError(err).Error("controller: config watcher exited")
			}
		}()
	}

	if opts.statusAddr != "" {
		router := metrics.Router(m, d, enumerate.Total, reg)
		statusSrv := &http.Server{Addr: opts.statusAddr, Handler: router}
		go func() {
			logger.WithField("status_addr", opts.statusAddr).Info("controller: status/metrics surface listening")
			if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Warn("controller: status server exited")
			}
		}()
		defer statusSrv.Close()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.port))
	if err != nil {
		return fmt.Errorf("controller: listen: %w", err)
	}
	defer ln.Close()

	logger.WithFields(logrus.Fields{
		"port":       opts.port,
		"user":       opts.user,
		"algorithm":  hostcrypt.Algorithm(job.Algorithm).String(),
		"chunk_size": opts.chunkSize,
	}).Info("controller: listening for workers")

	start := time.Now()
	go srv.Serve(ln)
	<-srv.Done()
	elapsed := time.Since(start)

	res, found := d.Found()
	if found {
		fmt.Printf("PASSWORD FOUND: %s\n", res.Password)
		fmt.Printf("total elapsed: %s, candidates tested: %d, cursor: %d/%d\n",
			elapsed, d.CandidatesTested(), d.Cursor(), enumerate.Total)
		return nil
	}

	fmt.Printf("password not found (exhausted=%v)\n", d.Exhausted())
	fmt.Printf("total elapsed: %s, candidates tested: %d, cursor: %d/%d\n",
		elapsed, d.CandidatesTested(), d.Cursor(), enumerate.Total)
	os.Exit(1)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
