package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial/enumerator"

	"github.com/gwillem/cartctl/pkg/link"
)

func TestOrderPorts(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyAMA0"},
		{Name: "/dev/cu.Bluetooth-Incoming-Port"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
		{Name: "/dev/ttyS0"},
	}

	tests := []struct {
		name string
		all  bool
		want []portInfo
	}{
		{
			name: "default",
			want: []portInfo{
				{Name: "/dev/ttyUSB0", USB: true, VIDPID: "1a86:7523", Product: "USB Serial"},
				{Name: "/dev/ttyAMA0"},
				{Name: "/dev/ttyS0"},
			},
		},
		{
			name: "all",
			all:  true,
			want: []portInfo{
				{Name: "/dev/ttyUSB0", USB: true, VIDPID: "1a86:7523", Product: "USB Serial"},
				{Name: "/dev/ttyAMA0"},
				{Name: "/dev/cu.Bluetooth-Incoming-Port"},
				{Name: "/dev/ttyS0"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orderPorts(details, tt.all)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("orderPorts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	saved := opts.Config
	t.Cleanup(func() { opts.Config = saved })

	opts.Config = ""
	if got := configPath(); got != link.DefaultConfigFile {
		t.Errorf("configPath() = %q, want %q", got, link.DefaultConfigFile)
	}
	opts.Config = "cart.yaml"
	if got := configPath(); got != "cart.yaml" {
		t.Errorf("configPath() = %q, want cart.yaml", got)
	}
}
