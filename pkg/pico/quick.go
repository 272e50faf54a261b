package pico

import "context"

// QuickStatus connects to a controller, fetches its status, and disconnects.
// Convenience for scripts and one-shot diagnostics; long-lived callers
// should hold a Client instead.
func QuickStatus(ctx context.Context, host, pin string) (*DeviceStatus, error) {
	client, err := NewClient(ClientConfig{Host: host, PIN: pin})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer client.Disconnect()

	return client.GetStatus(ctx)
}
