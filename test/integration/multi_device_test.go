// Package integration exercises the full client stack over loopback UDP:
// shared socket, identifier routing, resynchronization, and the high-level
// client API together.
package integration

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/picolink/pico/pkg/exchange"
	"github.com/picolink/pico/pkg/pico"
)

// device is a simulated controller on a loopback UDP socket. It keeps its
// own expected identifier the way real hardware does: a request with any
// other identifier is silently ignored.
type device struct {
	name string
	conn net.PacketConn

	mu       sync.Mutex
	expected int
	payload  map[string]any

	wg sync.WaitGroup
}

func startDevice(t *testing.T, name string, payload map[string]any) *device {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() failed: %v", err)
	}

	d := &device{name: name, conn: conn, expected: 0, payload: payload}
	d.wg.Add(1)
	go d.loop()
	t.Cleanup(func() {
		conn.Close()
		d.wg.Wait()
	})
	return d
}

func (d *device) port() int {
	return d.conn.LocalAddr().(*net.UDPAddr).Port
}

// drift moves the device's expected identifier, simulating a reboot or a
// counter that advanced while the client was away.
func (d *device) drift(idp int) {
	d.mu.Lock()
	d.expected = idp
	d.mu.Unlock()
}

func (d *device) loop() {
	defer d.wg.Done()

	buf := make([]byte, 8192)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		var req map[string]any
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}
		if res, _ := req["res"].(float64); int(res) == 99 {
			continue // client receipt confirmation
		}

		idp := int(req["idp"].(float64))

		d.mu.Lock()
		if d.expected == 0 {
			// First contact adopts the client's counter.
			d.expected = idp
		}
		ok := idp == d.expected
		d.mu.Unlock()
		if !ok {
			continue
		}

		ack, _ := json.Marshal(map[string]any{"idp": idp, "frm": "mst", "res": 99})
		d.conn.WriteTo(ack, addr)

		reply := map[string]any{"idp": idp, "frm": "mst", "res": 1, "name": d.name}
		if cmd, _ := req["cmd"].(string); cmd != "" {
			reply["cmd"] = cmd
		}
		for k, v := range d.payload {
			reply[k] = v
		}
		b, _ := json.Marshal(reply)
		d.conn.WriteTo(b, addr)
	}
}

func connect(t *testing.T, m *exchange.Manager, id string, d *device) *pico.Client {
	t.Helper()

	client, err := pico.NewClient(pico.ClientConfig{
		Host:       "127.0.0.1",
		DevicePort: d.port(),
		DeviceID:   id,
		Manager:    m,
	})
	if err != nil {
		t.Fatalf("NewClient(%s) failed: %v", id, err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect(%s) failed: %v", id, err)
	}
	t.Cleanup(client.Disconnect)
	return client
}

func TestTwoDevicesOneSocket(t *testing.T) {
	attic := startDevice(t, "attic", map[string]any{"mod": 1, "on_off": 1, "v_tmpr": 21.5, "memfree": 52000})
	cellar := startDevice(t, "cellar", map[string]any{"mod": 6, "on_off": 1, "v_tmpr": 14.0, "memfree": 48000})

	m, err := exchange.NewManager(exchange.ManagerConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	a := connect(t, m, "attic", attic)
	c := connect(t, m, "cellar", cellar)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Interleave commands against both devices over the one socket.
	for i := 0; i < 3; i++ {
		sa, err := a.GetStatus(ctx)
		if err != nil {
			t.Fatalf("attic status %d failed: %v", i, err)
		}
		if sa.Name != "attic" || sa.Temperature != 21.5 {
			t.Errorf("attic status = %q/%.1f, want attic/21.5", sa.Name, sa.Temperature)
		}

		sc, err := c.GetStatus(ctx)
		if err != nil {
			t.Fatalf("cellar status %d failed: %v", i, err)
		}
		if sc.Name != "cellar" || sc.Mode != pico.ModeHumidityRecovery {
			t.Errorf("cellar status = %q/%v, want cellar/HumidityRecovery", sc.Name, sc.Mode)
		}
	}

	if err := a.TurnOff(ctx); err != nil {
		t.Errorf("attic TurnOff failed: %v", err)
	}
}

func TestResyncWhilePeerKeepsWorking(t *testing.T) {
	attic := startDevice(t, "attic", map[string]any{"memfree": 52000})
	cellar := startDevice(t, "cellar", map[string]any{"memfree": 48000})

	m, err := exchange.NewManager(exchange.ManagerConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	a := connect(t, m, "attic", attic)
	c := connect(t, m, "cellar", cellar)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := a.SendCommand(ctx, "stato_sync", nil); err != nil {
		t.Fatalf("attic command failed: %v", err)
	}

	// The attic unit's counter drifts forward by one. The next command has
	// to probe forward; the cellar unit must stay unaffected.
	drifted := a.CurrentIDP() + 1
	attic.drift(drifted)

	done := make(chan error, 1)
	go func() {
		_, err := a.SendCommand(ctx, "stato_sync", nil)
		done <- err
	}()

	if _, err := c.GetStatus(ctx); err != nil {
		t.Errorf("cellar status during attic resync failed: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("attic command after drift failed: %v", err)
	}
	if got := a.CurrentIDP(); got != drifted {
		t.Errorf("attic CurrentIDP() = %d after resync, want %d", got, drifted)
	}
}

func TestRangeReuseAcrossClients(t *testing.T) {
	d := startDevice(t, "attic", map[string]any{"memfree": 52000})

	m, err := exchange.NewManager(exchange.ManagerConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	a := connect(t, m, "dev-a", d)
	_ = connect(t, m, "dev-b", d)

	a.Disconnect()

	// A new client takes over the released low range.
	cClient, err := pico.NewClient(pico.ClientConfig{
		Host:       "127.0.0.1",
		DevicePort: d.port(),
		DeviceID:   "dev-c",
		Manager:    m,
	})
	if err != nil {
		t.Fatalf("NewClient(dev-c) failed: %v", err)
	}
	if err := cClient.Connect(context.Background()); err != nil {
		t.Fatalf("Connect(dev-c) failed: %v", err)
	}
	t.Cleanup(cClient.Disconnect)

	s, ok := m.Lookup("dev-c")
	if !ok {
		t.Fatal("dev-c not registered")
	}
	if s.Range().Start != 1 {
		t.Errorf("dev-c range starts at %d, want the released 1", s.Range().Start)
	}
}
