package main

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/wavegen/devmem"
	"github.com/nasa-jpl/wavegen/generichttp"
	"github.com/nasa-jpl/wavegen/generichttp/tmc"
	"github.com/nasa-jpl/wavegen/regnet"
	"github.com/nasa-jpl/wavegen/server/middleware/locker"
	"github.com/nasa-jpl/wavegen/wavegen"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// interactive is true when out is a terminal
func interactive(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// connectRemote dials the remote generator, with a spinner on a terminal
// since the backoff can take a few seconds
func connectRemote(c *regnet.Client, addr string, spin bool) error {
	if !spin {
		return c.Connect()
	}
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " connecting to " + addr,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return c.Connect()
	}
	spinner.Start()
	if err = c.Connect(); err != nil {
		spinner.StopFail()
		return err
	}
	spinner.Stop()
	return nil
}

// openGenerator opens the transport named by the config.  The closer
// releases the transport.
func openGenerator(c Config, spin bool) (*wavegen.Generator, io.Closer, error) {
	switch strings.ToLower(c.Transport) {
	case "devmem", "":
		m, err := devmem.Open(c.Device, c.Base)
		if err != nil {
			return nil, nil, err
		}
		if c.Verbose {
			log.Printf("mapped %s at %#x", m.Device(), m.Base())
		}
		return wavegen.New(m), m, nil
	case "remote":
		if c.Remote.Addr == "" {
			return nil, nil, errors.Wrap(devmem.ErrTransportUnavailable, "remote transport with no remote.addr")
		}
		client := regnet.NewClient(c.Remote.Addr, c.Remote.Serial, c.Remote.Baud, regnet.WithRate(c.Remote.Rate), regnet.WithIdle(c.Remote.Idle))
		if err := connectRemote(client, c.Remote.Addr, spin); err != nil {
			client.Close()
			return nil, nil, errors.Wrapf(devmem.ErrTransportUnavailable, "%s", err)
		}
		return wavegen.New(client), client, nil
	case "mock":
		return wavegen.New(wavegen.NewMemory()), nopCloser{}, nil
	}
	return nil, nil, errors.Errorf("transport %q not understood, expected devmem, remote or mock", c.Transport)
}

// Execute opens the generator, runs a parsed command and closes it again
func Execute(c Config, act Action, out io.Writer) error {
	gen, closer, err := openGenerator(c, interactive(out))
	if err != nil {
		return err
	}
	defer closer.Close()
	return act(gen, out)
}

// BuildMux mounts the generator's routes under c.Endpoint behind a lock.
// The mux serves a special route, /endpoints, which returns the routes as JSON.
func BuildMux(c Config, gen *wavegen.Generator) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)

	httper := tmc.NewHTTPFunctionGenerator(gen)
	lock := locker.New()
	locker.Inject(httper, lock)

	hndlS := generichttp.SubMuxSanitize(c.Endpoint)
	supergraph := map[string][]string{hndlS: httper.RT().Endpoints()}

	r := chi.NewRouter()
	r.Use(lock.Check)
	httper.RT().Bind(r)
	root.Mount(hndlS, r)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}

// Expose serves the register protocol for t at c.ExposeAddr, a TCP address
// or a serial device when it begins with /dev/.  It blocks.
func Expose(c Config, t wavegen.Transport) error {
	srv := regnet.NewServer(t)
	srv.Verbose = c.Verbose
	if strings.HasPrefix(c.ExposeAddr, "/dev/") {
		port, err := serial.OpenPort(&serial.Config{Name: c.ExposeAddr, Baud: c.ExposeBaud})
		if err != nil {
			return err
		}
		defer port.Close()
		log.Println("serving registers on ", c.ExposeAddr)
		return srv.ServeConn(port)
	}
	ln, err := net.Listen("tcp", c.ExposeAddr)
	if err != nil {
		return err
	}
	log.Println("serving registers at ", ln.Addr())
	return srv.Serve(ln)
}
