// Command consul-host runs the consul instrument the way a plugin host
// would: a realtime thread processing fixed-size blocks and a UI thread
// feeding client messages read from stdin.
//
// Input lines look like
//
//	1 ["ui2host","k-01",0.5]
//	2 ["control","pad",1,144,36,100]
//	connect
//	disconnect 2
//
// Emitted events and the messages each client receives are written to
// stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/consul/pkg/consul"
	"github.com/justyntemme/consul/pkg/framework/debug"
	"github.com/justyntemme/consul/pkg/framework/process"
	"github.com/justyntemme/consul/pkg/framework/ui"
	"github.com/justyntemme/consul/pkg/midi"
)

type options struct {
	clients       int
	blockSize     int
	sampleRate    float64
	channels      int
	queueCapacity int
	maxEvents     int
	inboxSize     int
	stateFile     string
	logLevel      string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("consul-host", flag.ContinueOnError)
	fs.IntVarP(&opts.clients, "clients", "c", 2, "number of UI clients connected at startup")
	fs.IntVar(&opts.blockSize, "block-size", 512, "samples per processing block")
	fs.Float64Var(&opts.sampleRate, "sample-rate", 48000, "sample rate in Hz")
	fs.IntVar(&opts.channels, "channels", 2, "audio output channels")
	fs.IntVar(&opts.queueCapacity, "queue-capacity", midi.MinRingCapacity, "realtime event queue capacity")
	fs.IntVar(&opts.maxEvents, "max-events", process.DefaultMaxEvents, "output events per block")
	fs.IntVar(&opts.inboxSize, "inbox-size", ui.DefaultInboxSize, "undelivered messages buffered per client")
	fs.StringVarP(&opts.stateFile, "state-file", "s", "", "load state from and save it to this file")
	fs.StringVarP(&opts.logLevel, "log-level", "l", "info", "debug, info, warn, error or off")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.blockSize <= 0 || opts.sampleRate <= 0 {
		return opts, fmt.Errorf("block size and sample rate must be positive")
	}
	if opts.maxEvents <= 0 {
		return opts, fmt.Errorf("max events must be positive")
	}
	if opts.clients < 0 || opts.channels < 0 {
		return opts, fmt.Errorf("clients and channels must not be negative")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, err := debug.ParseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	debug.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		debug.Error("%v", err)
		os.Exit(1)
	}
}

// errInputClosed ends the session when stdin reaches EOF.
var errInputClosed = errors.New("input closed")

func run(ctx context.Context, opts options, in io.Reader, stdout io.Writer) error {
	out := &lockedWriter{w: stdout}
	log := debug.Default().WithPrefix("host")

	p := consul.New(consul.Options{QueueCapacity: opts.queueCapacity})
	if err := loadState(p, opts.stateFile); err != nil {
		return err
	}

	hub := ui.NewHub(opts.inboxSize)
	hub.SetLogger(log.WithPrefix("hub"))
	router := consul.NewUI(p, hub)

	profiler := debug.NewBlockProfiler(opts.sampleRate, opts.blockSize)
	engineOut := make(chan midi.Event, opts.maxEvents*4)

	g, gctx := errgroup.WithContext(ctx)

	// Realtime thread.
	g.Go(func() error {
		defer close(engineOut)
		pctx := newProcessContext(opts)
		ticker := time.NewTicker(profiler.Deadline())
		defer ticker.Stop()

		block := func() {
			start := time.Now()
			p.ProcessBlock(pctx)
			events := pctx.OutputEvents()
			profiler.Record(time.Since(start), len(events))
			for _, e := range events {
				select {
				case engineOut <- e:
				default:
				}
			}
		}

		for {
			select {
			case <-gctx.Done():
				// Flush what the UI thread queued before shutdown.
				block()
				return nil
			case <-ticker.C:
				block()
			}
		}
	})

	g.Go(func() error {
		for e := range engineOut {
			fmt.Fprintf(out, "engine: %v\n", e)
		}
		return nil
	})

	startClient := func(c *ui.Client) {
		router.Attach(c)
		g.Go(func() error {
			for msg := range c.Messages() {
				fmt.Fprintf(out, "client %d <- %s\n", c.ID, msg)
			}
			return nil
		})
	}

	for i := 0; i < opts.clients; i++ {
		startClient(hub.Connect())
	}

	lines := make(chan string)
	go readLines(in, lines)

	// UI thread. The only goroutine that touches the router, hub and store
	// until the group finishes.
	g.Go(func() error {
		defer func() {
			for _, id := range hub.Clients() {
				hub.Disconnect(id)
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errInputClosed
				}
				cmd, err := parseLine(line)
				if err != nil {
					log.Warn("%v", err)
					continue
				}
				switch cmd.kind {
				case cmdNone:
				case cmdConnect:
					c := hub.Connect()
					fmt.Fprintf(out, "client %d connected\n", c.ID)
					startClient(c)
				case cmdDisconnect:
					if !hub.Disconnect(cmd.client) {
						log.Warn("no client %d", cmd.client)
					}
				case cmdMessage:
					if _, ok := hub.Client(cmd.client); !ok {
						log.Warn("no client %d", cmd.client)
						continue
					}
					if err := router.HandleRaw(cmd.client, cmd.payload); err != nil && !ui.IsUnrecognized(err) {
						log.Warn("client %d: %v", cmd.client, err)
					}
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, errInputClosed) {
		err = nil
	}

	log.Info("%s", strings.TrimSpace(profiler.Report()))
	if saveErr := saveState(p, opts.stateFile); saveErr != nil && err == nil {
		err = saveErr
	}
	return err
}

func newProcessContext(opts options) *process.Context {
	pctx := process.NewContext(opts.maxEvents)
	pctx.SampleRate = opts.sampleRate
	pctx.Output = make([][]float32, opts.channels)
	for ch := range pctx.Output {
		pctx.Output[ch] = make([]float32, opts.blockSize)
	}
	return pctx
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

type cmdKind int

const (
	cmdNone cmdKind = iota
	cmdMessage
	cmdConnect
	cmdDisconnect
)

type command struct {
	kind    cmdKind
	client  ui.ClientID
	payload []byte
}

// parseLine reads one input line. Blank lines and lines starting with #
// are ignored.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{kind: cmdNone}, nil
	}

	head, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch head {
	case "connect":
		return command{kind: cmdConnect}, nil
	case "disconnect":
		id, err := parseClientID(rest)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdDisconnect, client: id}, nil
	}

	id, err := parseClientID(head)
	if err != nil {
		return command{}, err
	}
	if rest == "" {
		return command{}, fmt.Errorf("line %q has no message", line)
	}
	return command{kind: cmdMessage, client: id, payload: []byte(rest)}, nil
}

func parseClientID(s string) (ui.ClientID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad client id %q", s)
	}
	return ui.ClientID(n), nil
}

func loadState(p *consul.Plugin, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	defer f.Close()
	if err := p.Store().Load(f); err != nil {
		return fmt.Errorf("loading state from %s: %w", path, err)
	}
	return nil
}

func saveState(p *consul.Plugin, path string) error {
	if path == "" {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".consul-state-*")
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := p.Store().Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("saving state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving state: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// lockedWriter serializes writes from the printer goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
