package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncode(t *testing.T) {
	t.Run("basic command", func(t *testing.T) {
		data, err := Encode(Command{Name: "stato_sync", PIN: "1234"}, 42)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}

		if m["cmd"] != "stato_sync" {
			t.Errorf("cmd = %v, want stato_sync", m["cmd"])
		}
		if m["frm"] != SourceApp {
			t.Errorf("frm = %v, want %q", m["frm"], SourceApp)
		}
		if m["idp"] != float64(42) {
			t.Errorf("idp = %v, want 42", m["idp"])
		}
		if m["pin"] != "1234" {
			t.Errorf("pin = %v, want 1234", m["pin"])
		}
	})

	t.Run("params merged", func(t *testing.T) {
		data, err := Encode(Command{
			Name:   "set_temp",
			PIN:    "1234",
			Params: map[string]any{"temp": 25, "mode": "heat"},
		}, 7)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if m["temp"] != float64(25) {
			t.Errorf("temp = %v, want 25", m["temp"])
		}
		if m["mode"] != "heat" {
			t.Errorf("mode = %v, want heat", m["mode"])
		}
	})

	t.Run("params cannot override idp", func(t *testing.T) {
		data, err := Encode(Command{
			Name:   "set_temp",
			Params: map[string]any{"idp": 999},
		}, 5)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var m map[string]any
		json.Unmarshal(data, &m)
		if m["idp"] != float64(5) {
			t.Errorf("idp = %v, want 5", m["idp"])
		}
	})

	t.Run("empty pin omitted", func(t *testing.T) {
		data, err := Encode(Command{Name: "stato_sync"}, 1)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var m map[string]any
		json.Unmarshal(data, &m)
		if _, ok := m["pin"]; ok {
			t.Error("pin present, want omitted")
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if _, err := Encode(Command{}, 1); err != ErrMissingCommand {
			t.Errorf("Encode() error = %v, want %v", err, ErrMissingCommand)
		}
	})
}

func TestEncodeAck(t *testing.T) {
	data := EncodeAck(123)

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m["idp"] != float64(123) {
		t.Errorf("idp = %v, want 123", m["idp"])
	}
	if m["frm"] != SourceApp {
		t.Errorf("frm = %v, want %q", m["frm"], SourceApp)
	}
	if m["res"] != float64(ResultAck) {
		t.Errorf("res = %v, want %d", m["res"], ResultAck)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantIDP  int
		wantKind FrameKind
		wantErr  error
	}{
		{
			name:     "ack from controller",
			data:     `{"idp": 42, "frm": "mst", "res": 99}`,
			wantIDP:  42,
			wantKind: FrameKindAck,
		},
		{
			name:     "full response",
			data:     `{"idp": 42, "frm": "mst", "cmd": "stato_sync", "res": 0, "v_tmpr": 21.5}`,
			wantIDP:  42,
			wantKind: FrameKindResponse,
		},
		{
			name:     "res 99 from app is not an ack",
			data:     `{"idp": 42, "frm": "app", "res": 99}`,
			wantIDP:  42,
			wantKind: FrameKindResponse,
		},
		{
			name:     "response without res field",
			data:     `{"idp": 7, "frm": "mst", "cmd": "stato_sync"}`,
			wantIDP:  7,
			wantKind: FrameKindResponse,
		},
		{
			name:    "not json",
			data:    `not json at all`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "missing idp",
			data:    `{"frm": "mst", "res": 99}`,
			wantErr: ErrMissingIDP,
		},
		{
			name:    "non-numeric idp",
			data:    `{"idp": "abc", "frm": "mst"}`,
			wantErr: ErrMissingIDP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, err := Decode([]byte(tt.data))
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if fr.IDP != tt.wantIDP {
				t.Errorf("IDP = %d, want %d", fr.IDP, tt.wantIDP)
			}
			if fr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", fr.Kind, tt.wantKind)
			}
		})
	}
}

func TestDecodePayloadPreserved(t *testing.T) {
	fr, err := Decode([]byte(`{"idp": 1, "frm": "mst", "cmd": "stato_sync", "res": 0, "name": "Bagno"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if fr.Payload["name"] != "Bagno" {
		t.Errorf("Payload[name] = %v, want Bagno", fr.Payload["name"])
	}
	if fr.Command != "stato_sync" {
		t.Errorf("Command = %q, want stato_sync", fr.Command)
	}
}
