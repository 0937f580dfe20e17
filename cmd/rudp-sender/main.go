// Command rudp-sender reads a byte stream from standard input and delivers
// it, reliably and in order, to a rudp-receiver listening at <host>:<port>.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

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
	return &cobra.Command{
		Use:   "rudp-sender <host> <port>",
		Short: "Reliably deliver standard input to a rudp-receiver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil || port < 1 || port > 65535 {
				return errors.Errorf("invalid port %q: must be 1..65535", args[1])
			}
			return run(cmd.Context(), args[0], port)
		},
	}
}

func run(ctx context.Context, host string, port int) error {
	ctx = dgroup.WithGoroutineName(ctx, "/rudp-sender")
	ctx, cfg := rlog.Init(ctx, "rudp-sender")

	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return errors.Wrap(err, "resolve receiver address")
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return errors.Wrap(err, "open udp socket")
	}

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})
	g.Go("transfer", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		return sendStream(ctx, conn, peer, cfg)
	})

	runErr := g.Wait()
	if closeErr := conn.Close(); closeErr != nil {
		return multierror.Append(runErr, errors.Wrap(closeErr, "close socket")).ErrorOrNil()
	}
	return runErr
}

func sendStream(ctx context.Context, conn rudp.Conn, peer net.Addr, cfg rudp.Config) error {
	sender := rudp.NewSender(conn, peer, cfg)

	var bar *progressbar.ProgressBar
	useBar := term.IsTerminal(int(os.Stderr.Fd()))
	sender.OnStart = func(totalBytes, segments int) {
		dlog.Infof(ctx, "sending %d bytes in %d segments to %s", totalBytes, segments, peer)
		if useBar && totalBytes > 0 {
			bar = progressbar.DefaultBytes(int64(totalBytes), "sending")
		}
	}
	sender.OnAck = func(seq uint16, payloadLen int) {
		if bar != nil {
			_ = bar.Add(payloadLen)
		} else {
			dlog.Tracef(ctx, "acked segment %d (%d bytes)", seq, payloadLen)
		}
	}

	return sender.Run(ctx, os.Stdin)
}
