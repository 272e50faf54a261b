// picoctl is a command-line tool for Pico home-climate controllers.
//
// Usage:
//
//	picoctl discover [-timeout 10s]
//	picoctl status -host 192.168.1.50 [-pin 1234]
//	picoctl send -host 192.168.1.50 -cmd turn_on [-params '{"speed":3}']
//
// Configuration is resolved from flags, then environment variables with the
// PICO_ prefix (PICO_HOST, PICO_PIN, ...), then an optional picoctl.yaml in
// the working directory or $HOME/.config/picoctl/.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/viper"

	"github.com/picolink/pico/pkg/discovery"
	"github.com/picolink/pico/pkg/pico"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "discover":
		err = runDiscover(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  picoctl discover [-timeout 10s]
  picoctl status -host <addr> [-pin <pin>] [-verbose]
  picoctl send -host <addr> -cmd <verb> [-params <json>] [-pin <pin>]`)
}

// loadConfig merges flags with PICO_* environment variables and an optional
// picoctl.yaml.
func loadConfig(fs *flag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("pico")
	v.AutomaticEnv()

	v.SetConfigName("picoctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/picoctl")
	_ = v.ReadInConfig() // optional

	fs.VisitAll(func(f *flag.Flag) {
		v.SetDefault(f.Name, f.DefValue)
	})
	fs.Visit(func(f *flag.Flag) {
		v.Set(f.Name, f.Value.String())
	})
	return v
}

func newClient(v *viper.Viper) (*pico.Client, error) {
	cfg := pico.ClientConfig{
		Host:          v.GetString("host"),
		DevicePort:    v.GetInt("device-port"),
		PIN:           v.GetString("pin"),
		Timeout:       v.GetDuration("timeout"),
		AutoReconnect: v.GetBool("auto-reconnect"),
	}
	if v.GetBool("verbose") {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return pico.NewClient(cfg)
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	timeout := fs.Duration("timeout", discovery.DefaultBrowseTimeout, "browse duration")
	fs.Parse(args)

	resolver, err := discovery.NewResolver(discovery.ResolverConfig{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	devices, err := resolver.Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for dev := range devices {
		found++
		fmt.Printf("%-24s %-21s serial=%s model=%s fw=%s\n",
			dev.Instance, addrString(&dev), dev.TXT.Serial, dev.TXT.Model, dev.TXT.Firmware)
	}
	if found == 0 {
		fmt.Println("no controllers found")
	}
	return nil
}

func addrString(dev *discovery.Device) string {
	if a := dev.Addr(); a != nil {
		return a.String()
	}
	return "-"
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.String("host", "", "controller address")
	fs.Int("device-port", 0, "controller UDP port")
	fs.String("pin", "", "device PIN")
	fs.Duration("timeout", 0, "per-attempt reply timeout")
	fs.Bool("auto-reconnect", false, "reconnect on connection failures")
	fs.Bool("verbose", false, "enable logging")
	fs.Parse(args)

	v := loadConfig(fs)
	client, err := newClient(v)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	start := time.Now()
	status, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("device:      %s (fw %s)\n", status.Name, status.FirmwareVersion)
	fmt.Printf("power:       %s\n", status.OnOff)
	fmt.Printf("mode:        %s\n", status.Mode)
	fmt.Printf("temperature: %.1f C\n", status.Temperature)
	fmt.Printf("humidity:    %.1f %%\n", status.Humidity)
	fmt.Printf("speed:       %d\n", status.Speed)
	fmt.Printf("healthy:     %v\n", status.IsHealthy())
	fmt.Printf("fetched in %s (idp %d)\n", time.Since(start).Round(time.Millisecond), client.CurrentIDP())
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	fs.String("host", "", "controller address")
	fs.Int("device-port", 0, "controller UDP port")
	fs.String("pin", "", "device PIN")
	fs.Duration("timeout", 0, "per-attempt reply timeout")
	fs.Bool("auto-reconnect", false, "reconnect on connection failures")
	fs.Bool("verbose", false, "enable logging")
	cmd := fs.String("cmd", "", "command verb")
	paramsJSON := fs.String("params", "", "extra parameters as JSON object")
	fs.Parse(args)

	if strings.TrimSpace(*cmd) == "" {
		return fmt.Errorf("send: -cmd is required")
	}

	var params map[string]any
	if *paramsJSON != "" {
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			return fmt.Errorf("send: bad -params: %w", err)
		}
	}

	v := loadConfig(fs)
	client, err := newClient(v)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	payload, err := client.SendCommand(ctx, *cmd, params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
