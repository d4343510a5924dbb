package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/bench"
	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/bus/links"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/sim"
)

var (
	consoleAddr = ":7070"
	httpAddr    = ":7071"
	linkURL     string
	profileFile string

	openPins      string
	bridgedPins   string
	stuckPins     string
	adcOffsets    string
	eepromCorrupt bool
)

func init() {
	flag.StringVar(&consoleAddr, "console", consoleAddr, "Address serving the TESTER console over TCP")
	flag.StringVar(&httpAddr, "http", httpAddr, "Address serving the TESTER console over websocket at /console, empty to disable")
	flag.StringVar(&linkURL, "link", linkURL, "Bus link URL connecting the boards, in-process if empty")
	flag.StringVar(&profileFile, "board", profileFile, "Board profile YAML")
	flag.StringVar(&openPins, "open", openPins, "Open pins, e.g. 2,5")
	flag.StringVar(&bridgedPins, "bridge", bridgedPins, "Bridged pin pairs, e.g. 2:3,7:8")
	flag.StringVar(&stuckPins, "stuck", stuckPins, "Pins stuck high")
	flag.StringVar(&adcOffsets, "adc-offset", adcOffsets, "ADC reading offsets in mV per pin, e.g. 3:40,5:-20")
	flag.BoolVar(&eepromCorrupt, "eeprom-corrupt", eepromCorrupt, "Corrupt EEPROM writes")
}

func parsePins(s string) ([]uint32, error) {
	var pins []uint32
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		n, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid pin %q", item)
		}
		pins = append(pins, uint32(n))
	}
	return pins, nil
}

func parseFaults() (f sim.Faults, err error) {
	if f.Open, err = parsePins(openPins); err != nil {
		return
	}
	if f.StuckHigh, err = parsePins(stuckPins); err != nil {
		return
	}
	for _, pair := range strings.Split(bridgedPins, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		pins, perr := parsePins(strings.Replace(pair, ":", ",", 1))
		if perr != nil || len(pins) != 2 {
			return f, fmt.Errorf("invalid bridged pair %q", pair)
		}
		f.Bridged = append(f.Bridged, [2]uint32{pins[0], pins[1]})
	}
	for _, item := range strings.Split(adcOffsets, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		pinStr, mvStr, ok := strings.Cut(item, ":")
		pin, perr := strconv.ParseUint(pinStr, 10, 32)
		mv, merr := strconv.ParseInt(mvStr, 10, 32)
		if !ok || perr != nil || merr != nil {
			return f, fmt.Errorf("invalid ADC offset %q", item)
		}
		if f.AdcOffsetMv == nil {
			f.AdcOffsetMv = make(map[uint32]int32)
		}
		f.AdcOffsetMv[uint32(pin)] = int32(mv)
	}
	f.EepromCorrupt = eepromCorrupt
	return f, nil
}

func main() {
	flag.Parse()

	profile := board.Default()
	if profileFile != "" {
		p, err := board.Load(profileFile)
		if err != nil {
			log.Fatalln(err)
		}
		profile = p
	}
	faults, err := parseFaults()
	if err != nil {
		log.Fatalln(err)
	}

	b := bench.New(profile)
	b.Fixture.Inject(faults)
	if linkURL != "" {
		if b.DUTLink, err = links.Open(linkURL, b.DUTBus); err != nil {
			log.Fatalln(err)
		}
		if b.TesterLink, err = links.Open(linkURL, b.TesterBus); err != nil {
			log.Fatalln(err)
		}
	}

	l, err := net.Listen("tcp", consoleAddr)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("TESTER console on tcp://%s", l.Addr())

	runner := fx.NewRunner().HandleSignals()
	runner.Go(
		fx.NamedRun("bench", b),
		fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
			return b.Console.Serve(ctx, l)
		})),
	)
	if httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/console", b.Console.WebsocketHandler())
		srv := &http.Server{Addr: httpAddr, Handler: mux}
		glog.Infof("TESTER console on ws://%s/console", httpAddr)
		runner.Go(fx.NamedRun("http", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
		})))
	}
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
