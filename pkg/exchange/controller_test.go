package exchange

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/picolink/pico/pkg/protocol"
	"github.com/picolink/pico/pkg/transport"
)

// fakeController is a scripted peer speaking the controller side of the wire
// protocol over a pipe endpoint. Each decoded request is passed to handle,
// whose returned datagrams are written back. App-side receipt confirmations
// (frm="app", res=99) are recorded instead of handled.
type fakeController struct {
	conn   net.PacketConn
	handle func(req map[string]any) [][]byte

	mu       sync.Mutex
	requests []map[string]any
	appAcks  []int

	wg sync.WaitGroup
}

func startFakeController(t *testing.T, conn net.PacketConn, handle func(req map[string]any) [][]byte) *fakeController {
	t.Helper()

	fc := &fakeController{conn: conn, handle: handle}
	fc.wg.Add(1)
	go fc.loop()
	t.Cleanup(func() {
		conn.Close()
		fc.wg.Wait()
	})
	return fc
}

func (fc *fakeController) loop() {
	defer fc.wg.Done()

	buf := make([]byte, transport.MaxDatagramSize)
	for {
		n, addr, err := fc.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		var req map[string]any
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}

		if frm, _ := req["frm"].(string); frm == protocol.SourceApp {
			if res, ok := req["res"].(float64); ok && int(res) == protocol.ResultAck {
				idp, _ := req["idp"].(float64)
				fc.mu.Lock()
				fc.appAcks = append(fc.appAcks, int(idp))
				fc.mu.Unlock()
				continue
			}
		}

		fc.mu.Lock()
		fc.requests = append(fc.requests, req)
		fc.mu.Unlock()

		if fc.handle == nil {
			continue
		}
		for _, reply := range fc.handle(req) {
			if _, err := fc.conn.WriteTo(reply, addr); err != nil {
				return
			}
		}
	}
}

// requestCount returns how many non-ACK requests arrived.
func (fc *fakeController) requestCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.requests)
}

// appAckIDPs returns the IDPs of recorded app-side receipt confirmations.
func (fc *fakeController) appAckIDPs() []int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make([]int, len(fc.appAcks))
	copy(out, fc.appAcks)
	return out
}

func reqIDP(req map[string]any) int {
	idp, _ := req["idp"].(float64)
	return int(idp)
}

func ctrlAck(idp int) []byte {
	b, _ := json.Marshal(map[string]any{
		"idp": idp,
		"frm": protocol.SourceController,
		"res": protocol.ResultAck,
	})
	return b
}

func ctrlResponse(idp int, cmd string, fields map[string]any) []byte {
	m := map[string]any{
		"idp": idp,
		"frm": protocol.SourceController,
		"cmd": cmd,
	}
	for k, v := range fields {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

// deviceAddr is the controller's endpoint on the pipe, as seen by the
// manager's socket on endpoint 0.
var deviceAddr = transport.PipeAddr{ID: 1}

// newTestManager wires a manager to endpoint 0 of a fresh pipe and returns
// both. Endpoint 1 is the controller side.
func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *transport.Pipe) {
	t.Helper()

	p := transport.NewPipe()
	cfg.Conn = p.PacketConn(0)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		p.Close()
	})
	return m, p
}

// fastOptions returns exchange options tuned for tests. All fields are set
// explicitly; zero values would fall back to the production defaults.
func fastOptions() Options {
	return Options{
		Timeout:       100 * time.Millisecond,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
		ResyncDelay:   5 * time.Millisecond,
		AckGrace:      50 * time.Millisecond,
	}
}
