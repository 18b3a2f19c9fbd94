package discovery

import "testing"

func TestEndpoint_URL(t *testing.T) {
	tests := []struct {
		name string
		ep   *Endpoint
		want string
	}{
		{
			name: "serial port",
			ep:   &Endpoint{Kind: KindSerial, Address: "/dev/ttyACM0"},
			want: "/dev/ttyACM0",
		},
		{
			name: "bridge default path",
			ep:   &Endpoint{Kind: KindBridge, Address: "10.0.0.5:8765"},
			want: "ws://10.0.0.5:8765/mp1",
		},
		{
			name: "bridge path without slash",
			ep: &Endpoint{
				Kind:     KindBridge,
				Address:  "10.0.0.5:8765",
				Metadata: map[string]string{"path": "dev"},
			},
			want: "ws://10.0.0.5:8765/dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.URL(); got != tt.want {
				t.Errorf("URL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndpoint_String(t *testing.T) {
	ep := &Endpoint{Kind: KindSerial, Address: "/dev/ttyACM0", Name: "Whallera MP1"}
	if got, want := ep.String(), "serial /dev/ttyACM0 (Whallera MP1)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	ep = &Endpoint{Kind: KindBridge, Address: "10.0.0.5:8765"}
	if got, want := ep.String(), "bridge ws://10.0.0.5:8765/mp1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEndpoint_GetMetadata(t *testing.T) {
	ep := &Endpoint{Metadata: map[string]string{"vid": "2341"}}
	if got := ep.GetMetadata("vid"); got != "2341" {
		t.Errorf("GetMetadata(vid) = %q", got)
	}
	if got := ep.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q", got)
	}

	empty := &Endpoint{}
	if got := empty.GetMetadata("vid"); got != "" {
		t.Errorf("GetMetadata on nil map = %q", got)
	}
}
