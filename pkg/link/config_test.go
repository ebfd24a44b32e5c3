package link

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Port: "/dev/ttyUSB1"}.WithDefaults()

	want := Config{
		Port:        "/dev/ttyUSB1",
		BaudRate:    9600,
		ReadTimeout: Duration(100 * time.Millisecond),
		Settle:      Duration(100 * time.Millisecond),
		MaxDrain:    Duration(2 * time.Second),
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("WithDefaults mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	custom := Config{Port: "COM3", BaudRate: 115200, Settle: Duration(time.Millisecond)}.WithDefaults()
	if custom.BaudRate != 115200 || custom.Settle != Duration(time.Millisecond) {
		t.Errorf("WithDefaults overwrote explicit values: %+v", custom)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		substr string
	}{
		{"no port", Config{}.WithDefaults(), "port is required"},
		{"negative baud", Config{Port: "p", BaudRate: -1}.WithDefaults(), "baud_rate"},
		{"negative settle", Config{Port: "p", Settle: Duration(-time.Second)}.WithDefaults(), "settle_delay"},
		{"drain below read timeout", Config{Port: "p", ReadTimeout: Duration(time.Second), MaxDrain: Duration(time.Millisecond)}.WithDefaults(), "max_drain"},
	}

	for _, tt := range tests {
		err := tt.cfg.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidConfig", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.substr) {
			t.Errorf("%s: Validate() = %v, want mention of %q", tt.name, err, tt.substr)
		}
	}
}

func TestConfigSaveLoad(t *testing.T) {
	cfg := Config{
		Port:        "/dev/ttyUSB1",
		BaudRate:    19200,
		ReadTimeout: Duration(150 * time.Millisecond),
		Settle:      Duration(50 * time.Millisecond),
		MaxDrain:    Duration(3 * time.Second),
	}

	for _, name := range []string{"cart.json", "cart.yaml", "cart.yml", "cart.toml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s): %v", name, err)
		}
		got, err := LoadConfigFrom(path)
		if err != nil {
			t.Fatalf("LoadConfigFrom(%s): %v", name, err)
		}
		if diff := cmp.Diff(cfg, *got); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadConfigFormats(t *testing.T) {
	files := map[string]string{
		"cart.json": `{"port": "/dev/ttyACM0", "read_timeout": "200ms"}`,
		"cart.yaml": "port: /dev/ttyACM0\nread_timeout: 200ms\n",
		"cart.toml": "port = \"/dev/ttyACM0\"\nread_timeout = \"200ms\"\n",
	}

	for name, body := range files {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfigFrom(path)
		if err != nil {
			t.Fatalf("LoadConfigFrom(%s): %v", name, err)
		}
		if cfg.Port != "/dev/ttyACM0" || cfg.ReadTimeout != Duration(200*time.Millisecond) {
			t.Errorf("LoadConfigFrom(%s) = %+v", name, cfg)
		}
		if cfg.BaudRate != 0 {
			t.Errorf("LoadConfigFrom(%s) invented baud %d", name, cfg.BaudRate)
		}
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	if err := os.WriteFile(path, []byte(`{"port": "p", "settle_delay": "soon"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("expected parse error for bad duration")
	}
}
