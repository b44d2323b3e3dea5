package device

import (
	"testing"
	"time"
)

func TestNormalizeUnitID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want UnitID
	}{
		{"plain hex", "00ac629de9ad2f4409dc", "00ac629de9ad2f4409dc"},
		{"colon separated", "00:AC:62:9D:E9:AD:2F:44:09:DC", "00ac629de9ad2f4409dc"},
		{"dash separated", "00-ac-62-9d", "00ac629d"},
		{"mixed case with spaces", "  00AC 629D  ", "00ac629d"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeUnitID(tt.raw); got != tt.want {
				t.Errorf("NormalizeUnitID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassFromProductID(t *testing.T) {
	tests := []struct {
		productID string
		want      Class
	}{
		{"@lumen.lighting.rgb-cw-ww.e27", ClassBulb},
		{"@lumen.lighting.cw-ww.gu10", ClassBulb},
		{"@lumen.plug.eu", ClassPlug},
		{"@lumen.cleaning.vc1", ClassVacuum},
		{"@lumen.something.else", ClassUnknown},
		{"", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.productID, func(t *testing.T) {
			if got := ClassFromProductID(tt.productID); got != tt.want {
				t.Errorf("ClassFromProductID(%q) = %q, want %q", tt.productID, got, tt.want)
			}
		})
	}
}

func TestNewIdentity(t *testing.T) {
	id := NewIdentity("00:AC:62:9D", "@lumen.lighting.rgb-cw-ww.e27")

	if id.UnitID != "00ac629d" {
		t.Errorf("UnitID = %q, want %q", id.UnitID, "00ac629d")
	}
	if id.Class != ClassBulb {
		t.Errorf("Class = %q, want %q", id.Class, ClassBulb)
	}
}

func TestCommandExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		cmd  Command
		at   time.Time
		want bool
	}{
		{
			name: "no ttl never expires",
			cmd:  Command{Created: now},
			at:   now.Add(24 * time.Hour),
			want: false,
		},
		{
			name: "within ttl",
			cmd:  Command{Created: now, TTL: time.Minute},
			at:   now.Add(30 * time.Second),
			want: false,
		},
		{
			name: "past ttl",
			cmd:  Command{Created: now, TTL: time.Minute},
			at:   now.Add(2 * time.Minute),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Expired(tt.at); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandBody(t *testing.T) {
	t.Run("explicit payload passes through", func(t *testing.T) {
		cmd := NewCommand(CommandSet, []byte(`{"type":"set","color":{"red":255}}`))
		body, err := cmd.Body()
		if err != nil {
			t.Fatalf("Body() unexpected error: %v", err)
		}
		if string(body) != `{"type":"set","color":{"red":255}}` {
			t.Errorf("Body() = %s", body)
		}
	})

	t.Run("empty payload yields type envelope", func(t *testing.T) {
		cmd := NewCommand(CommandPing, nil)
		body, err := cmd.Body()
		if err != nil {
			t.Fatalf("Body() unexpected error: %v", err)
		}
		if string(body) != `{"type":"ping"}` {
			t.Errorf("Body() = %s, want type envelope", body)
		}
	})
}
