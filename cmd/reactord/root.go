package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/harrowgate/reactord/internal/httpd"
	"github.com/harrowgate/reactord/internal/reactor"
)

var verbose bool

// newRootCmd builds the cobra command tree. There is exactly one flag,
// -v/--verbose; everything else about the reactor's behavior is fixed.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reactord",
		Short: "single-threaded epoll reactor with a toy HTTP echo endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log routine traffic (accepts, content-length sets, completions, per-second stats)")
	return cmd
}

// run wires the reactor, the two HTTP-echo actors, and the three listener
// receivers, then drives the loop until Exit or a fatal error.
func run(verbose bool) error {
	return runOn(verbose, httpd.Addr, httpd.Port)
}

// runOn is run with the listen address broken out so tests can stand up
// an isolated instance on a different port than the one the shared test
// server already occupies.
func runOn(verbose bool, addr string, port int) error {
	r, err := reactor.New()
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			logrus.WithError(err).Warn("error closing reactor")
		}
	}()

	ctx, reqHandle, err := httpd.NewRequestContext(r)
	if err != nil {
		return err
	}

	clHandle, err := httpd.NewContentLengthActor(r, reqHandle)
	if err != nil {
		return err
	}
	ctx.BindContentLengthActor(clHandle)

	if _, err := httpd.NewListener(r, ctx, addr, port); err != nil {
		return err
	}
	if _, err := httpd.NewSignalListener(r); err != nil {
		return err
	}
	if _, err := httpd.NewTimerListener(r); err != nil {
		return err
	}

	return r.Run(verbose)
}
