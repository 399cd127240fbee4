package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	wg750 "github.com/bastibrunner/wg750"
)

func main() {
	var err error
	var host string
	var port uint16
	var configPath string
	var interval int
	var verbose bool
	var help bool
	var hub *wg750.Hub
	var config wg750.HubConfig

	flag.StringVar(&host, "host", "", "hostname or IP address of the controller")
	flag.Uint16Var(&port, "port", 502, "modbus/TCP port of the controller")
	flag.StringVar(&configPath, "config", "", "path to a YAML hub configuration")
	flag.IntVar(&interval, "interval", 1000, "poll interval in milliseconds (watch)")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&help, "help", false, "show a help message")
	flag.Parse()

	if help {
		displayHelp()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "wg750-cli"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if configPath != "" {
		config, err = wg750.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("loading config: %v", err)
		}
	}
	if host != "" {
		config.Host = host
	}
	if config.Host == "" {
		logger.Fatal("no controller specified, please use --host or --config")
	}
	if port != 502 || config.Port == 0 {
		config.Port = port
	}
	config.Logger = logger

	hub, err = wg750.NewHub(config)
	if err != nil {
		logger.Fatalf("connecting to %s: %v", config.Host, err)
	}
	defer hub.Close()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"modules"}
	}

	switch args[0] {
	case "info":
		fmt.Println(hub.Info())

	case "modules":
		dumpModules(hub)

	case "read":
		if len(args) != 2 {
			logger.Fatal("usage: read <module>:<channel>")
		}
		err = readChannel(hub, args[1])

	case "write":
		if len(args) != 3 {
			logger.Fatal("usage: write <module>:<channel> <value>")
		}
		err = writeChannel(hub, args[1], args[2])

	case "watch":
		err = watch(hub, interval, logger)

	default:
		logger.Fatalf("unknown command '%s' (try --help)", args[0])
	}

	if err != nil {
		logger.Fatalf("%v", err)
	}
}

// Resolves a "<module>:<channel>" reference against the discovered
// chain. The module part is a chassis index or an alias ("641").
func resolveChannel(hub *wg750.Hub, ref string) (ch wg750.Channel, err error) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid channel reference '%s'", ref)
	}

	var module *wg750.Module
	if index, cerr := strconv.Atoi(parts[0]); cerr == nil {
		if index < 0 || index >= hub.Modules().Len() {
			return nil, fmt.Errorf("module index %d out of range", index)
		}
		module = hub.Modules().At(index)
	} else if module = hub.Modules().Get(parts[0]); module == nil {
		return nil, fmt.Errorf("no module answering to '%s'", parts[0])
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 || index >= len(module.Channels()) {
		return nil, fmt.Errorf("invalid channel index '%s' on %s", parts[1], module)
	}

	return module.Channels()[index], nil
}

func readChannel(hub *wg750.Hub, ref string) (err error) {
	ch, err := resolveChannel(hub, ref)
	if err != nil {
		return
	}

	switch c := ch.(type) {
	case *wg750.DigitalIn:
		value, err := c.Read()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %v\n", c.Name(), value)
	case *wg750.DigitalOut:
		value, err := c.Read()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %v\n", c.Name(), value)
	case *wg750.Int16In:
		value, err := c.Read()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", c.Name(), value)
	case *wg750.Int16Out:
		value, err := c.Read()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", c.Name(), value)
	case *wg750.Counter32:
		value, err := c.Read()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", c.Name(), value)
	case *wg750.DaliChannel:
		value, err := c.Brightness()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", c.Name(), value)
	default:
		return fmt.Errorf("channel type %s not readable here", ch.Type())
	}

	return
}

func writeChannel(hub *wg750.Hub, ref string, value string) (err error) {
	ch, err := resolveChannel(hub, ref)
	if err != nil {
		return
	}

	switch c := ch.(type) {
	case *wg750.DigitalOut:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean '%s'", value)
		}
		return c.Write(b)
	case *wg750.Int16Out:
		v, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid register value '%s'", value)
		}
		return c.Write(uint16(v))
	case *wg750.Counter32:
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid counter value '%s'", value)
		}
		return c.Set(uint32(v))
	case *wg750.DaliChannel:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid brightness '%s'", value)
		}
		return c.SetBrightness(v)
	}

	return fmt.Errorf("channel type %s is not writable", ch.Type())
}

func dumpModules(hub *wg750.Hub) {
	type moduleDump struct {
		Index    int      `yaml:"index"`
		Module   string   `yaml:"module"`
		Name     string   `yaml:"name"`
		IOType   string   `yaml:"io_type"`
		Channels []string `yaml:"channels,omitempty"`
	}

	var dump []moduleDump
	for _, m := range hub.Modules().All() {
		d := moduleDump{
			Index:  m.Index,
			Module: m.Identifier.String(),
			Name:   m.Name(),
			IOType: m.Spec.IOType.String(),
		}
		for _, ch := range m.Channels() {
			d.Channels = append(d.Channels, ch.Name())
		}
		dump = append(dump, d)
	}

	out, _ := yaml.Marshal(map[string]any{"modules": dump})
	fmt.Print(string(out))
}

// Registers a change callback on every digital input and 16-bit analog
// input channel and polls until interrupted.
func watch(hub *wg750.Hub, interval int, logger *log.Logger) (err error) {
	for _, m := range hub.Modules().All() {
		for _, ch := range m.Channels() {
			switch c := ch.(type) {
			case *wg750.DigitalIn:
				c.OnChange(func(value bool, ch *wg750.DigitalIn) {
					fmt.Printf("%s: %v\n", ch.Name(), value)
				})
			case *wg750.Int16In:
				c.OnChange(func(value uint16, ch *wg750.Int16In) {
					fmt.Printf("%s: %d\n", ch.Name(), value)
				})
			}
		}
	}

	err = hub.Connection().StartPolling(wg750.PollIntervals{
		Global: time.Duration(interval) * time.Millisecond,
	})
	if err != nil {
		return
	}
	defer hub.Stop()

	logger.Info("watching for changes, ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return
}

func displayHelp() {
	fmt.Printf("wg750-cli talks to a 750-series fieldbus controller over modbus/TCP.\n\n" +
		"usage: wg750-cli [flags] <command>\n\n" +
		"commands:\n" +
		"  info                        show the controller identity\n" +
		"  modules                     dump the discovered module chain (default)\n" +
		"  read <module>:<channel>     read a channel (module index or alias)\n" +
		"  write <module>:<channel> v  write a channel\n" +
		"  watch                       print channel changes as they happen\n\n" +
		"flags:\n")
	flag.PrintDefaults()
}
