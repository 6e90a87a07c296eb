// Package lock ties the credential store and the enrollment and access
// controllers into a running door lock.
//
// # Creating a Device
//
//	dev, err := lock.New(lock.Config{
//	    Region:   nvm.NewMemoryRegion(nvm.DefaultSize),
//	    Reader:   reader,
//	    Actuator: device.NewServo(device.ServoConfig{}),
//	    Feedback: panel,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := dev.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Lifecycle
//
// New loads the stored credential. Without one the device starts
// Uninitialized and Run first enrolls the next presented card; with one it
// starts Idle. Run then polls the reader until ctx is cancelled. A device
// never re-enrolls: the credential written on first use stays for the life
// of the region.
//
// # Testing
//
// NewTestRig wires a Device to in-memory doubles:
//
//	rig := lock.NewTestRig(device.Card(0xDE, 0xAD, 0xBE, 0xEF))
//	dev, _ := lock.New(rig.Config())
//	go dev.Run(ctx)
package lock
