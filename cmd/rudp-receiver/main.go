// Command rudp-receiver listens on an ephemeral UDP port, reassembles the
// in-order byte stream sent to it by a single rudp-sender peer, and writes it
// to standard output. It runs until killed.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coho-systems/rudp/internal/rlog"
	"github.com/coho-systems/rudp/pkg/rudp"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var portFile string
	c := &cobra.Command{
		Use:   "rudp-receiver",
		Short: "Reassemble a stream sent by a rudp-sender and write it to standard output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), portFile)
		},
	}
	c.Flags().StringVar(&portFile, "port-file", "", "write the bound UDP port to this file instead of stderr")
	return c
}

func run(ctx context.Context, portFile string) error {
	ctx = dgroup.WithGoroutineName(ctx, "/rudp-receiver")
	ctx, _ = rlog.Init(ctx, "rudp-receiver")

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return errors.Wrap(err, "bind udp socket")
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	if err := announcePort(portFile, port); err != nil {
		return errors.Wrap(err, "announce bound port")
	}
	dlog.Infof(ctx, "listening on udp port %d", port)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})
	g.Go("receive", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		receiver := rudp.NewReceiver(conn, os.Stdout)
		return receiver.Run(ctx)
	})

	runErr := g.Wait()
	if closeErr := conn.Close(); closeErr != nil {
		return multierror.Append(runErr, errors.Wrap(closeErr, "close socket")).ErrorOrNil()
	}
	return runErr
}

// announcePort tells the supervising test harness which port was bound. The
// side channel is a file when --port-file is given (so it never collides
// with the data stream on stdout), otherwise a recognizable stderr line.
func announcePort(portFile string, port int) error {
	if portFile == "" {
		fmt.Fprintf(os.Stderr, "PORT %d\n", port)
		return nil
	}
	return os.WriteFile(portFile, []byte(fmt.Sprintf("%d\n", port)), 0o644)
}
