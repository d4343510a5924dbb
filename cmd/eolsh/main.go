package main

import (
	"github.com/robotalks/eol.go/pkg/cli/sh"
	"github.com/robotalks/eol.go/pkg/station"
)

//go-build: CGO_ENABLED=0

func init() {
	station.SetupFlags()
}

func main() {
	sh.Main()
}
