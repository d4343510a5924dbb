package main

import (
	"flag"
	"log"
	"os"

	"github.com/golang/glog"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/station"
)

// Exit codes.
const (
	exitPass  = 0
	exitFail  = 1
	exitFatal = 2
)

func init() {
	station.SetupFlags()
}

func run() int {
	ctx := fx.NewRunner().HandleSignals().Context
	st, err := station.NewConfig().NewStation(ctx)
	if err != nil {
		log.Printf("FATAL: %v", err)
		return exitFatal
	}
	defer st.Close()
	st.Report = func(line string) { log.Println(line) }

	log.Printf("station %s testing %s", st.StationID, st.Board)
	rec, err := st.Test(ctx)
	if rec == nil {
		log.Printf("FATAL: %v", err)
		return exitFatal
	}
	if err != nil {
		log.Printf("record not saved: %v", err)
	}
	if !rec.Verdict.Pass {
		return exitFail
	}
	return exitPass
}

func main() {
	flag.Parse()
	log.SetFlags(0)
	code := run()
	glog.Flush()
	os.Exit(code)
}
