package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/gwillem/cartctl/pkg/link"
	"github.com/gwillem/cartctl/pkg/logging"
)

type Options struct {
	Config  string `short:"c" long:"config" description:"Configuration file, .json, .yaml or .toml (default: cartctl.json)"`
	Verbose bool   `short:"v" long:"verbose" description:"Log frames and device lines"`

	Drive    DriveCommand    `command:"drive" alias:"run" description:"Open the link and drive the cart from the console"`
	Setup    SetupCommand    `command:"setup" description:"Pick the serial port and save the configuration"`
	Ports    PortsCommand    `command:"ports" description:"List serial ports"`
	Simulate SimulateCommand `command:"simulate" alias:"sim" description:"Run a simulated cart on a serial device"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "cartctl - drive a motorized cart over its serial link"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func logLevel() zerolog.Level {
	if opts.Verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func newLogger() zerolog.Logger {
	return logging.New("cartctl", logging.Options{Level: logLevel()})
}

func configPath() string {
	if opts.Config == "" {
		return link.DefaultConfigFile
	}
	return opts.Config
}

// loadConfig reads the config file. A missing file is not an error; flags
// and defaults fill in.
func loadConfig() (link.Config, error) {
	cfg, err := link.LoadConfigFrom(configPath())
	if errors.Is(err, fs.ErrNotExist) {
		return link.Config{}, nil
	}
	if err != nil {
		return link.Config{}, fmt.Errorf("load config: %w", err)
	}
	return *cfg, nil
}
