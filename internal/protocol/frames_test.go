package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewSubscribeFrame(t *testing.T) {
	f := NewSubscribeFrame("venue.42.reviews", "user-1")

	if f.Type != TypeSubscribe {
		t.Errorf("Type = %q, want %q", f.Type, TypeSubscribe)
	}
	if f.Channel != "venue.42.reviews" {
		t.Errorf("Channel = %q, want %q", f.Channel, "venue.42.reviews")
	}
	if f.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", f.UserID, "user-1")
	}
	if f.RequestID == "" {
		t.Error("RequestID should not be empty")
	}

	g := NewSubscribeFrame("venue.42.reviews", "user-1")
	if g.RequestID == f.RequestID {
		t.Error("request ids should be unique per frame")
	}
}

func TestPong(t *testing.T) {
	data := `{"type":"ping","timestamp":1705328200123,"requestId":"req-9"}`

	var ping PingFrame
	if err := json.Unmarshal([]byte(data), &ping); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	pong := Pong(ping)
	if pong.Type != TypePong {
		t.Errorf("Type = %q, want %q", pong.Type, TypePong)
	}
	if pong.Timestamp != 1705328200123 {
		t.Errorf("Timestamp = %d, want 1705328200123", pong.Timestamp)
	}
	if pong.RequestID != "req-9" {
		t.Errorf("RequestID = %q, want %q", pong.RequestID, "req-9")
	}
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid notification",
			raw:  `{"type":"notification","id":"n-1","kind":"booking_confirmed","title":"Booking confirmed","body":"Table for 2 at 19:00","venueId":"v-7","timestamp":1705328200}`,
		},
		{
			name:    "wrong type tag",
			raw:     `{"type":"ping","timestamp":1}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"type":"notification",`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNotification failed: %v", err)
			}
			if n.ID != "n-1" {
				t.Errorf("ID = %q, want %q", n.ID, "n-1")
			}
			if n.Kind != "booking_confirmed" {
				t.Errorf("Kind = %q, want %q", n.Kind, "booking_confirmed")
			}
			if n.VenueID != "v-7" {
				t.Errorf("VenueID = %q, want %q", n.VenueID, "v-7")
			}
		})
	}
}
