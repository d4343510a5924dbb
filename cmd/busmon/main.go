package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/bus/mqtt"
	"github.com/robotalks/eol.go/pkg/signals"
)

var (
	mqttURL = "mqtt://localhost:1883/eol/"
	all     bool
)

func init() {
	if val := os.Getenv("EOL_BUS_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&all, "all", all, "Print every update, not only changes.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	b := signals.NewBus()
	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	updates := make(chan bus.Update, 64)
	q.Sub("#", func(topic string, payload []byte) {
		sig, err := mqtt.ParseTopic(b, topic)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		val, err := mqtt.DecodeValue(payload)
		if err != nil {
			log.Printf("%s: bad payload: %v", topic, err)
			return
		}
		updates <- bus.Update{Signal: sig, Value: val}
	})
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	live := make(map[bus.Node]bool)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case u := <-updates:
			changed := b.Read(u.Signal) != u.Value
			b.Apply(u)
			if all || changed {
				log.Printf("%s/%s: %s", u.Signal.Owner, u.Signal.Name, signals.Describe(u.Signal, u.Value))
			}
		case <-ticker.C:
		}
		for _, n := range b.Nodes() {
			if l := b.IsNodeLive(n); l != live[n] {
				live[n] = l
				if l {
					log.Printf("%s: live", n)
				} else {
					log.Printf("%s: lost", n)
				}
			}
		}
	}
}
