package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/wavegen/devmem"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "wavegen.yml"

	// EnvPrefix marks environment variables that override the config file,
	// WAVEGEN_REMOTE_ADDR => remote.addr
	EnvPrefix = "WAVEGEN_"

	k = koanf.New(".")
)

// RemoteConfig describes a generator reached over TCP or a serial line
type RemoteConfig struct {
	// Addr is host:port, or a device file such as /dev/ttyUSB0 when Serial
	Addr string `koanf:"addr" yaml:"addr"`

	Serial bool `koanf:"serial" yaml:"serial"`

	Baud int `koanf:"baud" yaml:"baud"`

	// Rate caps register accesses per second, 0 is unlimited
	Rate float64 `koanf:"rate" yaml:"rate"`

	// Idle closes the link after it has gone unused this long, 0 keeps it open
	Idle time.Duration `koanf:"idle" yaml:"idle"`
}

// Config holds everything needed to reach the generator and serve it
type Config struct {
	// Transport is one of devmem, remote, mock
	Transport string `koanf:"transport" yaml:"transport"`

	// Device is the memory device mapped by the devmem transport
	Device string `koanf:"device" yaml:"device"`

	// Base is the physical address of the register block
	Base int64 `koanf:"base" yaml:"base"`

	Remote RemoteConfig `koanf:"remote" yaml:"remote"`

	// HTTPAddr is the address serve listens at
	HTTPAddr string `koanf:"http" yaml:"http"`

	// Endpoint is the URL stem the generator routes are mounted under
	Endpoint string `koanf:"endpoint" yaml:"endpoint"`

	// ExposeAddr is where expose serves the register protocol, a TCP
	// address or a serial device file
	ExposeAddr string `koanf:"expose" yaml:"expose"`

	// ExposeBaud is used when ExposeAddr is a serial device
	ExposeBaud int `koanf:"exposebaud" yaml:"exposebaud"`

	// Verbose logs every register access made through expose
	Verbose bool `koanf:"verbose" yaml:"verbose"`
}

// DefaultConfig is the configuration before the file and environment are applied
func DefaultConfig() Config {
	return Config{
		Transport:  "devmem",
		Device:     devmem.DefaultDevice,
		Base:       devmem.DefaultBase,
		Remote:     RemoteConfig{Baud: 115200, Idle: time.Minute},
		HTTPAddr:   ":8000",
		Endpoint:   "/wavegen",
		ExposeAddr: ":8765",
		ExposeBaud: 115200,
	}
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.Replace(strings.ToLower(s), "_", ".", -1)
}

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func loadconfig() Config {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `wavegen controls a two channel FPGA waveform generator through its
eight 32-bit registers.  The registers are reached by mapping physical memory
on the board, or over TCP / serial from another machine running "wavegen expose".

Usage:
	wavegen <command> [arguments]

Waveforms (CH is a, b, 0 or 1; FREQ is the raw tuning word; AMP and OFS in volts,
DUTY in percent):
	sine CH FREQ AMP [OFS [DUTY]]
	saw  CH FREQ AMP [OFS [DUTY]]
	tri  CH FREQ AMP [OFS [DUTY]]
	sq   CH FREQ AMP [OFS [DUTY]]
	arb  CH FREQ AMP [OFS [DUTY]]
	dc   CH OFS

Channel settings:
	cycles     CH N|continuous
	phase      CH DEGREES
	complement CH on|off
	hilbert    CH on|off

Control:
	run [a|b|ab]
	stop [a|b|ab]
	status

Servers and configuration:
	serve
	expose
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `wavegen is amenable to configuration via its .yml file, wavegen.yml in
the working directory.  Run "wavegen mkconf" to write one holding the defaults.
Any key may be overridden with an environment variable named WAVEGEN_ followed by
the key, with dots replaced by underscores, e.g. WAVEGEN_TRANSPORT=remote or
WAVEGEN_REMOTE_ADDR=192.168.1.20:8765.

transport selects how the registers are reached:
	devmem  map "base" from "device" (default /dev/mem at 0x43C20000); needs root
	remote  speak the register protocol to remote.addr, a host:port or, with
	        remote.serial: true, a device file at remote.baud
	mock    an in-memory register file, nothing leaves the process

serve exposes every channel attribute over HTTP at "http" under "endpoint";
GET /endpoints lists the routes.  POST <endpoint>/lock {"bool": true} locks
out other clients.

expose serves the register protocol at "expose" so that a remote machine can
use transport: remote.  If "expose" begins with /dev/ it is a serial port.

A waveform command writes run last; the channel emits only once fully
configured.  stop zeroes mode, frequency, amplitude, offset and duty, on both
channels unless one is named, and leaves cycles, phase, complement and hilbert
alone.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("wavegen version %v\n", Version)
}

// closeOnSignal closes the transport when the process is asked to quit
func closeOnSignal(c io.Closer) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		c.Close()
		os.Exit(0)
	}()
}

func serve() {
	c := loadconfig()
	gen, closer, err := openGenerator(c, interactive(os.Stdout))
	if err != nil {
		log.Fatal(err)
	}
	closeOnSignal(closer)
	mux := BuildMux(c, gen)
	log.Println("now listening for requests at ", c.HTTPAddr)
	log.Fatal(http.ListenAndServe(c.HTTPAddr, mux))
}

func expose() {
	c := loadconfig()
	gen, closer, err := openGenerator(c, interactive(os.Stdout))
	if err != nil {
		log.Fatal(err)
	}
	closeOnSignal(closer)
	log.Fatal(Expose(c, gen.Transport()))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	if !interactive(os.Stdout) {
		color.NoColor = true
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help", "-h", "--help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "serve":
		serve()
		return
	case "expose":
		expose()
		return
	case "version":
		pversion()
		return
	}
	act, err := Parse(args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, `run "wavegen" with no arguments for usage`)
		os.Exit(2)
	}
	if err := Execute(loadconfig(), act, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
