// Package links opens bus links by URL.
package links

import (
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/bus/mqtt"
	"github.com/robotalks/eol.go/pkg/bus/slcan"
	"github.com/robotalks/eol.go/pkg/bus/socketcan"
)

// Config selects the bus link.
type Config struct {
	// URL is one of
	//
	//	mqtt://host:1883/eol/
	//	socketcan://can0
	//	slcan:///dev/ttyACM1
	URL string
}

var defaultConfig = Config{
	URL: "mqtt://localhost:1883/eol/",
}

func init() {
	if val := os.Getenv("EOL_BUS_URL"); val != "" {
		defaultConfig.URL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "link", defaultConfig.URL, "Bus link URL")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Open opens the link of the bus.
func (c *Config) Open(b *bus.Bus) (bus.Link, error) {
	return Open(c.URL, b)
}

// Open opens a link by URL.
func Open(linkURL string, b *bus.Bus) (bus.Link, error) {
	u, err := url.Parse(linkURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "tcp", "ws", "wss", "ssl":
		link, err := mqtt.Dial(linkURL, b)
		if err != nil {
			return nil, err
		}
		return link, nil
	case "socketcan":
		link, err := socketcan.Open(u.Host, b, b.Signals())
		if err != nil {
			return nil, err
		}
		return link, nil
	case "slcan":
		link, err := slcan.Open(u.Path, b)
		if err != nil {
			return nil, err
		}
		return link, nil
	}
	return nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
}
