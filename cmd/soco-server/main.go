// Command soco-server runs the SoCo relay: soco-server <port>
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SoCo-NP/SoCo/internal/app"
	"github.com/SoCo-NP/SoCo/internal/config"
)

// usageError marks argument problems, which print the usage text as well
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	// FUNCTIONAL DISCOVERY: SIGINT/SIGTERM cancel the root context, Run then shuts down gracefully
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprint(os.Stderr, cmd.UsageString())
		}
		stop()
		os.Exit(1)
	}
}

// ARCHITECTURAL DISCOVERY: Exactly one positional argument and no flags; every
// other setting comes from SOCO_* environment variables
func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "soco-server <port>",
		Short: "Relay server for the SoCo collaborative classroom editor",
		Long: `soco-server accepts editor clients on the given TCP port on all interfaces
and relays document snapshots, cursors, follow-me, questions and compile
locks between them.

Optional surfaces are enabled through the environment:
  SOCO_WS_ADDR       WebSocket gateway listen address
  SOCO_ADMIN_ADDR    admin API (health, roster, locks, events, metrics)
  SOCO_JOURNAL_PATH  sqlite activity journal`,
		Args:               validateArgs,
		DisableFlagParsing: true, // so "-1" reaches validateArgs as a bad port
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := parsePort(args[0])
			return serve(cmd.Context(), port)
		},
	}
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageError{fmt.Errorf("expected exactly one argument <port>, got %d", len(args))}
	}
	if _, err := parsePort(args[0]); err != nil {
		return usageError{err}
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return port, nil
}

// serve runs the relay on port until ctx is cancelled
func serve(ctx context.Context, port int) error {
	cfg := config.LoadFromEnv()
	cfg.Relay.Port = port

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	if err := application.Listen(); err != nil {
		return err
	}

	log.Printf("Starting SoCo relay: addr=%s", application.RelayAddr())
	return application.Run(ctx)
}
