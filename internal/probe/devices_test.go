package probe

import "testing"

// deviceReply builds a wire-accurate ListInputDevices reply carrying
// the given device names. Each device gets one 8-byte class-info block.
func deviceReply(names ...string) []byte {
	raw := make([]byte, 32)
	raw[0] = 1
	raw[8] = byte(len(names))
	for range names {
		info := make([]byte, 8)
		info[5] = 1 // one class-info block follows
		raw = append(raw, info...)
	}
	for range names {
		class := make([]byte, 8)
		class[1] = 8 // block length including this header
		raw = append(raw, class...)
	}
	for _, n := range names {
		raw = append(raw, byte(len(n)))
		raw = append(raw, n...)
	}
	return raw
}

func TestParseDeviceNames(t *testing.T) {
	names, err := parseDeviceNames(deviceReply(
		"Virtual core pointer",
		"xwayland-keyboard:10",
	))
	if err != nil {
		t.Fatalf("parseDeviceNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2", len(names))
	}
	if names[0] != "Virtual core pointer" || names[1] != "xwayland-keyboard:10" {
		t.Fatalf("unexpected names: %q", names)
	}
	if ClassifyDeviceNames(names) != Yes {
		t.Fatal("an xwayland-prefixed device must classify as yes")
	}
}

func TestParseDeviceNamesRejectsTruncation(t *testing.T) {
	full := deviceReply("Virtual core pointer")
	for _, cut := range []int{8, 33, len(full) - 4} {
		if _, err := parseDeviceNames(full[:cut]); err == nil {
			t.Fatalf("reply cut to %d bytes must not parse", cut)
		}
	}
}
