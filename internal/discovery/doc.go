// Package discovery finds places an MP1 device can be reached.
//
// Two sources are consulted:
//
//   - Local serial ports, listed with go.bug.st/serial/enumerator and
//     optionally filtered by USB vendor and product id
//   - whallera bridges on the local network, which advertise the
//     "_whallera._tcp" mDNS service
//
// Every result is an Endpoint whose URL() can be handed to transport.Open.
//
// # Usage Example
//
//	ep, err := discovery.First(ctx, discovery.Options{
//	    Serial: discovery.SerialFilter{USBOnly: true},
//	    MDNS:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	t, err := transport.Open(ctx, ep.URL(), transport.Options{})
//
// # Ordering
//
// USB serial ports come first, then other serial ports, then bridges in the
// order their advertisements arrived. The CLI uses the first entry when no
// --interface flag is given.
package discovery
