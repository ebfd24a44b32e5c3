package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/gwillem/cartctl/pkg/console"
	"github.com/gwillem/cartctl/pkg/control"
	"github.com/gwillem/cartctl/pkg/link"
	"github.com/gwillem/cartctl/pkg/logging"
)

type DriveCommand struct {
	Port        string        `short:"p" long:"port" description:"Serial device, overrides the config file"`
	Baud        int           `short:"b" long:"baud" description:"Baud rate, overrides the config file"`
	ReadTimeout time.Duration `long:"read-timeout" description:"Per-read timeout, overrides the config file"`
	Plain       bool          `long:"plain" description:"Line console instead of the full-screen UI"`
	LogFile     string        `long:"log-file" description:"Log file while the full-screen UI runs"`
}

func (c *DriveCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if c.Baud != 0 {
		cfg.BaudRate = c.Baud
	}
	if c.ReadTimeout != 0 {
		cfg.ReadTimeout = link.Duration(c.ReadTimeout)
	}
	if cfg.Port == "" {
		return errors.New("no port configured: run 'cartctl setup' or pass --port")
	}

	tui := !c.Plain && isTerminal(os.Stdin) && isTerminal(os.Stdout)
	logger := newLogger()
	if tui {
		fileLogger, closer, err := logging.File("cartctl", c.LogFile, logLevel())
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer closer.Close()
		logger = fileLogger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := link.Open(cfg, link.WithLogger(logger))
	if err != nil {
		return err
	}
	cfg = cfg.WithDefaults()
	fmt.Println(console.Line{Level: console.Info, Text: fmt.Sprintf("Serial port %s opened successfully at %d,8N1.", cfg.Port, cfg.BaudRate)})

	sess := control.New(ln, control.WithLogger(logger))
	return drive(ctx, sess, func(ctx context.Context) error {
		if tui {
			return runTUI(ctx, sess, cfg.Port)
		}
		return runPlain(ctx, sess, os.Stdin, os.Stdout)
	}, os.Stdout, logger)
}

// drive runs the console and then shuts the session down, whatever way the
// console ended.
func drive(ctx context.Context, sess *control.Session, run func(context.Context) error, out io.Writer, logger zerolog.Logger) error {
	runErr := run(ctx)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("console stopped")
	}

	ex, err := sess.Shutdown(ctx)
	printLines(out, console.ShutdownLines(ex, err))
	return multierr.Combine(runErr, err)
}

// runPlain is the line console: one command per input line.
func runPlain(ctx context.Context, sess *control.Session, in io.Reader, out io.Writer) error {
	ex, err := sess.SendCurrentState(ctx)
	printLines(out, console.ResponseLines(ex.Response))
	if err != nil {
		return fmt.Errorf("send idle state: %w", err)
	}
	printLines(out, console.Execute(ctx, sess, console.Command{Kind: console.Help}).Lines)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "Enter command: ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			printLines(out, []console.Line{{Level: console.Info, Text: "User interrupted the console."}})
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			r := console.Run(ctx, sess, line)
			printLines(out, r.Lines)
			if r.Quit {
				return nil
			}
			if errors.Is(r.Err, link.ErrTransport) {
				return r.Err
			}
		}
	}
}

func printLines(w io.Writer, lines []console.Line) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
