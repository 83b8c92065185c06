// Package schema loads the device-type schema source and projects
// adapter readings into persistence-ready records.
//
// The schema source is a hand-edited YAML file mapping each device type
// to a datastore file, a table, and an ordered column list. Columns name
// the reading field they draw from and, for register-backed devices, the
// register address, span, scale, and wire format used to decode it.
//
// # Features
//
//   - Fail-fast parsing: bad identifiers, unknown storage classes, and
//     duplicate or nameless columns reject the whole source
//   - Automatic device_name and timestamp columns on every device type
//   - Reading projection with source priority and NULL fill for absent
//     fields
//   - Hot reload via modification-time polling, keeping the previous
//     schema when a reload fails
//
// # Usage
//
//	watcher, err := schema.NewWatcher("config/schema_config.yaml", log)
//	if err != nil {
//	    return err
//	}
//
//	set := watcher.Current()
//	sch, ok := set.Schema("plug")
//	if !ok {
//	    return fmt.Errorf("%w: plug", schema.ErrUnknownType)
//	}
//	record := schema.Project(reading, sch, device.Name)
//
// Security considerations:
//   - Table and column names flow into runtime DDL. The identifier
//     allow-list here is the only gate; nothing downstream re-validates
//   - Schema files are trusted operator input, but a malformed file must
//     never take down a running poller: reloads keep the last good Set
package schema
