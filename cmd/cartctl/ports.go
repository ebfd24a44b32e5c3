package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type PortsCommand struct {
	All bool `long:"all" description:"Include Bluetooth ports"`
}

type portInfo struct {
	Name    string
	USB     bool
	VIDPID  string
	Product string
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := listPorts(c.All)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		printNoPorts()
		return nil
	}
	fmt.Println(renderPorts(ports))
	return nil
}

func printNoPorts() {
	fmt.Println(errorStyle.Render("No serial ports found."))
	fmt.Println("Make sure the cart controller is plugged in.")
}

// listPorts returns the detected serial ports, USB adapters first. Details
// come from the enumerator when it is supported on this platform.
func listPorts(all bool) ([]portInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		return orderPorts(details, all), nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	var ports []portInfo
	for _, name := range names {
		if !all && strings.Contains(name, "Bluetooth") {
			continue
		}
		ports = append(ports, portInfo{Name: name})
	}
	return ports, nil
}

// orderPorts puts USB adapters ahead of on-board UARTs. Bluetooth ports are
// skipped unless all is set.
func orderPorts(details []*enumerator.PortDetails, all bool) []portInfo {
	var usb, other []portInfo
	for _, d := range details {
		if !all && strings.Contains(d.Name, "Bluetooth") {
			continue
		}
		p := portInfo{Name: d.Name, USB: d.IsUSB, Product: d.Product}
		if d.IsUSB {
			p.VIDPID = d.VID + ":" + d.PID
			usb = append(usb, p)
			continue
		}
		other = append(other, p)
	}
	return append(usb, other...)
}

func renderPorts(ports []portInfo) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tablePortStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		kind := "serial"
		if p.USB {
			kind = "usb"
		}
		rows = append(rows, []string{p.Name, kind, p.VIDPID, p.Product})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Type", "VID:PID", "Product").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tablePortStyle
			}
			return tableCellStyle
		})
	return t.Render()
}
