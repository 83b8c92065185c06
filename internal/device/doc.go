// Package device loads the device inventory and publishes it to the
// registry table.
//
// The inventory is a hand-edited YAML file mapping device names to their
// type, connector, and network address. It is loaded once at startup and
// validated in full: a device with a bad address or an unknown connector
// fails the process before the first poll cycle.
//
// # Usage
//
//	devices, err := device.LoadFile("config/device_config.yaml")
//	if err != nil {
//	    return err
//	}
//
//	registry := device.NewRegistry(db)
//	if err := registry.Rebuild(ctx, set.DevicesDB, devices); err != nil {
//	    return err
//	}
//
// The registry table is derived state. External consumers read it to
// join readings back to device metadata; it is rebuilt from the
// inventory on every start and never written anywhere else.
package device
