// rfid-reader-sim is a simulated reader head. It reads card UIDs from
// stdin, one per line in hex, and reports each to a door lock.
//
// Usage:
//
//	rfid-reader-sim [options]
//
// Options:
//
//	-lock      Lock address host:port (default: discover over DNS-SD)
//	-device    Lock device name to discover (default: first found)
//	-name      Head name sent in frames (default: "reader-sim")
//	-timeout   Discovery timeout (default: 5s)
//	-log       Log level (default: info)
//
// Example:
//
//	echo "DE AD BE EF" | rfid-reader-sim -device "Front Door"
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/examples/readerhead"
)

func main() {
	opts := readerhead.Options{Input: os.Stdin}
	var level string

	flag.StringVar(&opts.LockAddr, "lock", "", "Lock address host:port (empty = discover)")
	flag.StringVar(&opts.DeviceName, "device", "", "Lock device name to discover")
	flag.StringVar(&opts.Name, "name", readerhead.DefaultName, "Head name sent in frames")
	flag.DurationVar(&opts.BrowseTimeout, "timeout", readerhead.DefaultBrowseTimeout, "Discovery timeout")
	flag.StringVar(&level, "log", "info", "Log level: error, warn, info, debug, trace")
	flag.Parse()

	opts.LoggerFactory = common.NewLoggerFactory(level)

	sim, err := readerhead.New(opts)
	if err != nil {
		log.Fatalf("Failed to create reader head: %v", err)
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Reader head error: %v", err)
	}
}
