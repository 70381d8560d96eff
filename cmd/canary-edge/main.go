/*
This command runs the canary edge proxy.

For the list of command line options, run:

	canary-edge -help

For details about the routing, please see the documentation of the
canaryedge and the canary packages.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	canaryedge "github.com/zalando-incubator/canary-edge"
	"github.com/zalando-incubator/canary-edge/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	if err := canaryedge.RunWithShutdown(cfg.ToOptions(), sigs); err != nil {
		log.Fatal(err)
	}
}
