// Command llsim drives two ll.Controllers (one master, one slave) against
// each other over an in-memory simradio.Link, exercising a connection
// establishment and the startup feature/version procedure sequence; no
// host data is exchanged.
// It exists as a runnable demonstration of the core, doubling as a manual
// test harness for the BLE stack.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	ll "github.com/paypal/go-ll-controller"
	"github.com/paypal/go-ll-controller/internal/chanmap"
	"github.com/paypal/go-ll-controller/internal/metrics"
	"github.com/paypal/go-ll-controller/internal/radio/simradio"
)

func main() {
	var (
		configPath = flag.StringP("config", "c", "", "YAML config file (defaults if empty)")
		events     = flag.IntP("events", "n", 20, "number of connection events to simulate")
		verbose    = flag.BoolP("verbose", "v", false, "enable debug logging")
	)
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := ll.DefaultConfig()
	if *configPath != "" {
		loaded, err := ll.LoadConfig(*configPath)
		if err != nil {
			log.WithError(err).Fatal("load config")
		}
		cfg = loaded
	}

	link := simradio.NewLink()
	radioA := simradio.New(link, true)
	radioB := simradio.New(link, false)

	master := ll.NewController(cfg, radioA, metrics.NewNoop())
	slave := ll.NewController(cfg, radioB, metrics.NewNoop())

	aa, err := chanmap.GenerateAccessAddress()
	if err != nil {
		log.WithError(err).Fatal("generate access address")
	}
	params := ll.ConnectionParams{
		AccessAddress: aa,
		CRCInit:       0x555555,
		HopIncrement:  7,
		ChannelMap:    chanmap.AllChannels(),
		Interval:      24, // 30ms
		Latency:       0,
		Timeout:       200, // 2s
		OwnSCA:        4,
		PeerSCA:       4,
	}

	mh, status := master.ConnectEnable(params)
	if status != ll.StatusSuccess {
		log.WithField("status", status).Fatal("master connect")
	}
	sh, status := slave.AcceptAsSlave(params)
	if status != ll.StatusSuccess {
		log.WithField("status", status).Fatal("slave accept")
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s master handle=%d slave handle=%d access_address=0x%08x\n", green("connected"), mh, sh, aa)

	if status := master.FeatureReqSend(mh); status != ll.StatusSuccess {
		log.WithField("status", status).Warn("feature req")
	}
	if status := master.VersionIndSend(mh); status != ll.StatusSuccess {
		log.WithField("status", status).Warn("version ind")
	}

	for i := 0; i < *events; i++ {
		radioA.Advance(uint32(params.Interval) * 1250)
		radioB.Advance(uint32(params.Interval) * 1250)
		master.ServiceTicker()
		slave.ServiceTicker()

		for _, c := range []*ll.Controller{master, slave} {
			for {
				ev, ok := c.RxGet()
				if !ok {
					break
				}
				log.WithField("kind", ev.Kind).Debug("rx event")
				if ev.Kind == ll.RxData {
					c.RxMemRelease(ev.NodeIdx)
				}
				c.RxDequeue()
			}
		}
	}

	fmt.Println(color.YellowString("simulation complete after %d events", *events))
	os.Exit(0)
}
