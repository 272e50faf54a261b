// Package pico is the high-level client for Pico home-climate controllers.
//
// A Client wraps one device: it registers the device with an exchange
// manager (its own, or a shared one multiplexing several devices over a
// single socket), runs correlated commands through the device session, and
// optionally supervises the link with automatic reconnection.
//
// Typical use:
//
//	client, err := pico.NewClient(pico.ClientConfig{
//		Host: "192.168.1.50",
//		PIN:  "1234",
//	})
//	if err != nil {
//		// handle
//	}
//	if err := client.Connect(context.Background()); err != nil {
//		// handle
//	}
//	defer client.Disconnect()
//
//	status, err := client.GetStatus(context.Background())
//
// To drive several controllers over one socket, create an exchange.Manager
// and pass it to every client's ClientConfig.Manager.
package pico
