package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/cartctl/pkg/link"
)

var baudRates = []int{9600, 19200, 38400, 57600, 115200}

type SetupCommand struct {
	All bool `long:"all" description:"Offer Bluetooth ports too"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("cartctl setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	fmt.Println("Scanning for serial ports...")
	ports, err := listPorts(c.All)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		printNoPorts()
		return errors.New("no serial ports")
	}
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Serial ports ━━━"))
	fmt.Println(renderPorts(ports))
	fmt.Println()

	if err := runSetupForm(&cfg, ports); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Setup aborted, nothing saved.")
			return nil
		}
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", configPath())
	fmt.Println()
	fmt.Println("Start driving with: " + headerStyle.Render("cartctl drive"))
	return nil
}

func runSetupForm(cfg *link.Config, ports []portInfo) error {
	portOptions := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		label := p.Name
		if p.Product != "" {
			label += " (" + p.Product + ")"
		}
		portOptions = append(portOptions, huh.NewOption(label, p.Name))
	}
	if cfg.Port == "" {
		cfg.Port = ports[0].Name
	}

	baudOptions := make([]huh.Option[int], 0, len(baudRates))
	for _, b := range baudRates {
		baudOptions = append(baudOptions, huh.NewOption(strconv.Itoa(b), b))
	}

	timeout := cfg.ReadTimeout.String()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the cart controller on?").
				Options(portOptions...).
				Value(&cfg.Port),
			huh.NewSelect[int]().
				Title("Baud rate").
				Description("The controller firmware ships at 9600").
				Options(baudOptions...).
				Value(&cfg.BaudRate),
			huh.NewInput().
				Title("Read timeout").
				Description("How long the device may stay quiet before a reply is complete").
				Value(&timeout).
				Validate(func(s string) error {
					var d link.Duration
					return d.UnmarshalText([]byte(s))
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	return cfg.ReadTimeout.UnmarshalText([]byte(timeout))
}
