// Command worker connects to a crackfleet controller, registers, and
// runs the request/crack loop until a password is found or the search
// space is exhausted.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/barrosov/crackfleet/internal/protocol"
	"github.com/barrosov/crackfleet/internal/workerio"
)

type workerOptions struct {
	controller string
	port       int
	threads    int
}

func newRootCmd() *cobra.Command {
	opts := &workerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Crack candidate passwords for a controller's job",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWorker(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.controller, "controller", "c", "", "controller host to connect to (required)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", opts.port, "controller TCP port")
	cmd.Flags().IntVarP(&opts.threads, "threads", "t", opts.threads, "cracker goroutines per chunk")

	cmd.PreRunE = func(_ *cobra.Command, _ []string) error {
		if opts.controller == "" {
			return fmt.Errorf("--controller is required")
		}
		if opts.port <= 0 || opts.port > 65535 {
			return fmt.Errorf("--port must be in 1..65535, got %d", opts.port)
		}
		if opts.threads <= 0 {
			return fmt.Errorf("--threads must be positive, got %d", opts.threads)
		}
		return nil
	}

	return cmd
}

// register performs the handshake workerio.Run expects to have already
// happened: send MSG_REGISTER, then block for the MSG_JOB reply. This
// is connection setup, not steady-state protocol, so it lives in
// cmd/worker rather than internal/workerio (see loop.go's doc comment).
func register(conn net.Conn) (protocol.CrackJob, error) {
	if err := protocol.WriteTag(conn, protocol.MsgRegister); err != nil {
		return protocol.CrackJob{}, fmt.Errorf("worker: send MSG_REGISTER: %w", err)
	}
	tag, err := protocol.ReadTag(conn)
	if err != nil {
		return protocol.CrackJob{}, fmt.Errorf("worker: read reply tag: %w", err)
	}
	if tag != protocol.MsgJob {
		return protocol.CrackJob{}, fmt.Errorf("worker: expected MSG_JOB, got %s", tag)
	}
	return protocol.ReadJob(conn)
}

func runWorker(opts *workerOptions) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	addr := fmt.Sprintf("%s:%d", opts.controller, opts.port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("worker: dial %s: %w", addr, err)
	}
	defer conn.Close()

	logger.WithField("controller_addr", addr).Info("worker: connected")

	job, err := register(conn)
	if err != nil {
		return err
	}
	logger.WithField("algorithm", job.Algorithm).Info("worker: registered, job received")

	res, err := workerio.Run(conn, job, opts.threads, logger)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	if res.Found {
		fmt.Printf("PASSWORD FOUND: %s (elapsed %.1fms, %d candidates tested)\n",
			res.Password, res.ElapsedMs, res.Candidates)
		return nil
	}

	fmt.Printf("no password found (elapsed %.1fms, %d candidates tested)\n", res.ElapsedMs, res.Candidates)
	os.Exit(1)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
