package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gwillem/cartctl/pkg/cartsim"
	"github.com/gwillem/cartctl/pkg/link"
)

type SimulateCommand struct {
	Port string `short:"p" long:"port" description:"Serial device the simulated cart answers on"`
	Baud int    `short:"b" long:"baud" default:"9600" description:"Baud rate"`
	Pair bool   `long:"pair" description:"Create a virtual serial pair with socat and serve one end"`
	Dir  string `long:"dir" default:"/tmp" description:"Where --pair creates its links"`
}

func (c *SimulateCommand) Execute(args []string) error {
	if c.Pair == (c.Port != "") {
		return errors.New("pass exactly one of --port or --pair")
	}

	logger := newLogger().With().Str("component", "cartsim").Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device := c.Port
	if c.Pair {
		pair, err := cartsim.NewPair(ctx,
			filepath.Join(c.Dir, "ttyCART0"),
			filepath.Join(c.Dir, "ttyCART1"),
			logger)
		if err != nil {
			return err
		}
		defer pair.Close()
		device = pair.Device
		fmt.Println(successStyle.Render("Virtual cart ready."))
		fmt.Println("Drive it with: " + headerStyle.Render("cartctl drive --port "+pair.Host))
	}

	port, err := link.OpenPort(device, c.Baud)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}
	defer port.Close()
	// short timeout so cancellation is noticed between reads
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("set read timeout on %s: %w", device, err)
	}

	sim := cartsim.New(cartsim.WithLogger(logger))
	logger.Info().Str("port", device).Int("baud", c.Baud).Msg("simulated cart listening")
	err = sim.Serve(ctx, port)
	logger.Info().Int("frames", sim.Frames()).Int("unstaged", sim.Warnings()).Msg("simulated cart stopped")
	return err
}
