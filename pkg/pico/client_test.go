package pico

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/picolink/pico/pkg/exchange"
	"github.com/picolink/pico/pkg/protocol"
)

// fakeDevice is a scripted controller on a loopback UDP socket. Requests are
// passed to handle; returned payloads are sent back to the requester,
// preceded by a receipt ACK. App-side receipt confirmations are swallowed.
type fakeDevice struct {
	conn   net.PacketConn
	handle func(req map[string]any) map[string]any

	mu       sync.Mutex
	requests []map[string]any

	wg sync.WaitGroup
}

func startFakeDevice(t *testing.T, handle func(req map[string]any) map[string]any) *fakeDevice {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() failed: %v", err)
	}

	fd := &fakeDevice{conn: conn, handle: handle}
	fd.wg.Add(1)
	go fd.loop()
	t.Cleanup(func() {
		conn.Close()
		fd.wg.Wait()
	})
	return fd
}

func (fd *fakeDevice) port() int {
	return fd.conn.LocalAddr().(*net.UDPAddr).Port
}

func (fd *fakeDevice) loop() {
	defer fd.wg.Done()

	buf := make([]byte, 8192)
	for {
		n, addr, err := fd.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		var req map[string]any
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}
		if res, ok := req["res"].(float64); ok && int(res) == protocol.ResultAck {
			continue
		}

		fd.mu.Lock()
		fd.requests = append(fd.requests, req)
		fd.mu.Unlock()

		if fd.handle == nil {
			continue
		}
		payload := fd.handle(req)
		if payload == nil {
			continue
		}

		idp, _ := req["idp"].(float64)

		ack, _ := json.Marshal(map[string]any{"idp": idp, "frm": "mst", "res": 99})
		fd.conn.WriteTo(ack, addr)

		reply := map[string]any{"idp": idp, "frm": "mst"}
		if cmd, ok := req["cmd"].(string); ok {
			reply["cmd"] = cmd
		}
		for k, v := range payload {
			reply[k] = v
		}
		b, _ := json.Marshal(reply)
		fd.conn.WriteTo(b, addr)
	}
}

func (fd *fakeDevice) lastRequest() map[string]any {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if len(fd.requests) == 0 {
		return nil
	}
	return fd.requests[len(fd.requests)-1]
}

// statusPayload is a representative healthy status frame body.
func statusPayload(mode DeviceMode) map[string]any {
	return map[string]any{
		"res":     1,
		"name":    "Attic unit",
		"fw_ver":  "2.4.1",
		"v_tmpr":  21.5,
		"v_umd":   48.0,
		"mod":     int(mode),
		"on_off":  1,
		"speed":   2,
		"err":     []int{0, 0, 0},
		"memfree": 52000,
	}
}

// newTestClient wires a client to a fake device through a shared manager
// bound to an ephemeral loopback port.
func newTestClient(t *testing.T, fd *fakeDevice) *Client {
	t.Helper()

	m, err := exchange.NewManager(exchange.ManagerConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	client, err := NewClient(ClientConfig{
		Host:       "127.0.0.1",
		DevicePort: fd.port(),
		PIN:        "1234",
		DeviceID:   "test-device",
		Manager:    m,
	})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func TestClientStatus(t *testing.T) {
	fd := startFakeDevice(t, func(req map[string]any) map[string]any {
		if req["cmd"] == "stato_sync" {
			return statusPayload(ModeHeatRecovery)
		}
		return map[string]any{"res": 1}
	})

	client := newTestClient(t, fd)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer client.Disconnect()

	status, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() failed: %v", err)
	}

	if status.Name != "Attic unit" {
		t.Errorf("Name = %q, want Attic unit", status.Name)
	}
	if status.Temperature != 21.5 {
		t.Errorf("Temperature = %v, want 21.5", status.Temperature)
	}
	if status.Mode != ModeHeatRecovery {
		t.Errorf("Mode = %v, want HeatRecovery", status.Mode)
	}
	if !status.IsOn() {
		t.Error("IsOn() = false, want true")
	}
	if !status.IsHealthy() {
		t.Error("IsHealthy() = false, want true")
	}

	if got := client.CurrentIDP(); got != 1 {
		t.Errorf("CurrentIDP() = %d, want 1", got)
	}
	if got := client.LastMode(); got != ModeHeatRecovery {
		t.Errorf("LastMode() = %v, want HeatRecovery", got)
	}

	// The status request carried the PIN.
	if req := fd.lastRequest(); req["pin"] != "1234" {
		t.Errorf("request pin = %v, want 1234", req["pin"])
	}
}

func TestClientLifecycle(t *testing.T) {
	fd := startFakeDevice(t, nil)
	client := newTestClient(t, fd)

	if client.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	if _, err := client.GetStatus(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetStatus() error = %v, want ErrNotConnected", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	client.Disconnect()
	if client.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}
	// Idempotent.
	client.Disconnect()
}

func TestClientValidation(t *testing.T) {
	t.Run("MissingHost", func(t *testing.T) {
		_, err := NewClient(ClientConfig{})
		if !errors.Is(err, ErrMissingHost) {
			t.Errorf("NewClient() error = %v, want ErrMissingHost", err)
		}
	})

	t.Run("TimeoutOutOfRange", func(t *testing.T) {
		_, err := NewClient(ClientConfig{Host: "192.168.1.50", Timeout: MaxTimeout + 1})
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("NewClient() error = %v, want ErrInvalidTimeout", err)
		}
	})

	t.Run("DeviceIDDefaulted", func(t *testing.T) {
		c, err := NewClient(ClientConfig{Host: "192.168.1.50"})
		if err != nil {
			t.Fatalf("NewClient() failed: %v", err)
		}
		if c.DeviceID() == "" {
			t.Error("DeviceID() empty, want generated UUID")
		}
	})
}

func TestClientSharedManager(t *testing.T) {
	fd := startFakeDevice(t, func(req map[string]any) map[string]any {
		return statusPayload(ModeHeatRecovery)
	})

	m, err := exchange.NewManager(exchange.ManagerConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	newShared := func(id string) *Client {
		c, err := NewClient(ClientConfig{
			Host:       "127.0.0.1",
			DevicePort: fd.port(),
			DeviceID:   id,
			Manager:    m,
		})
		if err != nil {
			t.Fatalf("NewClient(%s) failed: %v", id, err)
		}
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("Connect(%s) failed: %v", id, err)
		}
		t.Cleanup(c.Disconnect)
		return c
	}

	a := newShared("dev-a")
	b := newShared("dev-b")

	sa, _ := m.Lookup("dev-a")
	sb, _ := m.Lookup("dev-b")
	if sa.Range().Start != 1 || sb.Range().Start != 1+exchange.DefaultRangeSize {
		t.Errorf("ranges = [%d, %d], want [1, %d]",
			sa.Range().Start, sb.Range().Start, 1+exchange.DefaultRangeSize)
	}

	if _, err := a.GetStatus(context.Background()); err != nil {
		t.Errorf("GetStatus(dev-a) failed: %v", err)
	}
	if _, err := b.GetStatus(context.Background()); err != nil {
		t.Errorf("GetStatus(dev-b) failed: %v", err)
	}
}

func TestClientEvents(t *testing.T) {
	fd := startFakeDevice(t, func(req map[string]any) map[string]any {
		return statusPayload(ModeHumidityRecovery)
	})

	client := newTestClient(t, fd)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer client.Disconnect()

	got := make(chan map[string]any, 1)
	client.OnEvent("stato_sync", func(payload map[string]any) {
		select {
		case got <- payload:
		default:
		}
	})

	if _, err := client.GetStatus(context.Background()); err != nil {
		t.Fatalf("GetStatus() failed: %v", err)
	}

	// Handlers fire asynchronously from the routing path.
	select {
	case payload := <-got:
		if payload["name"] != "Attic unit" {
			t.Errorf("event payload name = %v, want Attic unit", payload["name"])
		}
	case <-time.After(time.Second):
		t.Error("status frame did not fire the registered handler")
	}
}
