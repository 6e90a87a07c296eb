// rfid-lock is a single-credential RFID door lock.
//
// The first card presented after a fresh start is enrolled as the trusted
// credential; afterwards only that card unlocks the door. Cards arrive as
// CBOR frames from reader heads over UDP (see rfid-reader-sim).
//
// Usage:
//
//	rfid-lock [options]
//
// Options:
//
//	-config      YAML file (default: $RFIDLOCK_CONFIG)
//	-name        Device name (default: "Front Door")
//	-listen      Reader link UDP address (default: ":5683")
//	-storage     memory, file or sqlite (default: memory)
//	-path        Storage path for file and sqlite
//	-unlock      Unlock duration (default: 3s)
//	-log         Log level (default: info)
//	-sound       Block for buzzer patterns
//	-discovery   Advertise over DNS-SD (default: true)
//	-status      Status HTTP address (default: disabled)
//	-mqtt        MQTT broker URL (default: disabled)
//
// Every option can also be set with an RFIDLOCK_* environment variable,
// e.g. RFIDLOCK_STORAGE_PATH, or in a .env file in the working directory.
//
// Example:
//
//	rfid-lock -storage sqlite -path lock.db -status 127.0.0.1:8080
package main

import (
	"log"
	"os"

	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/examples/doorlock"
)

func main() {
	opts, err := common.ParseFlags()
	if err != nil {
		if common.IsHelp(err) {
			common.PrintUsage()
			os.Exit(0)
		}
		log.Fatalf("Invalid options: %v", err)
	}

	device, err := doorlock.NewDevice(opts)
	if err != nil {
		log.Fatalf("Failed to create door lock: %v", err)
	}

	// Run the device (blocks until interrupted)
	if err := common.RunDevice(device); err != nil {
		log.Fatalf("Device error: %v", err)
	}
}
