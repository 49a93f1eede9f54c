package probe

import (
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// XWaylandProbes detects whether the display is an XWayland bridge
// rather than a real X server. Ordered strongest-first: the extension
// is authoritative where present, device names are near-certain, the
// compositor name is a last-resort hint.
func XWaylandProbes() []Probe {
	return []Probe{
		{Name: "xwayland-extension", Run: probeXWaylandExtension},
		{Name: "xwayland-input-devices", Run: probeXWaylandDevices},
		{Name: "compositor-name", Run: probeCompositorName},
	}
}

// probeXWaylandExtension checks for the XWAYLAND extension, which
// modern servers expose exactly when they are XWayland. Older bridges
// predate it, so absence proves nothing.
func probeXWaylandExtension(d *xconn.Display) Result {
	reply, err := xproto.QueryExtension(d.Conn(),
		uint16(len("XWAYLAND")), "XWAYLAND").Reply()
	if err != nil {
		return Inconclusive
	}
	if reply.Present {
		return Yes
	}
	return Inconclusive
}

// probeXWaylandDevices scans core input device names; XWayland names
// its virtual devices "xwayland-pointer", "xwayland-keyboard" and so
// on.
func probeXWaylandDevices(d *xconn.Display) Result {
	names, err := listInputDeviceNames(d.Conn())
	if err != nil {
		return Inconclusive
	}
	return ClassifyDeviceNames(names)
}

// ClassifyDeviceNames is the pure decision over a device-name list.
func ClassifyDeviceNames(names []string) Result {
	if len(names) == 0 {
		return Inconclusive
	}
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), "xwayland-") {
			return Yes
		}
	}
	return No
}

// probeCompositorName inspects the EWMH window-manager name. A name
// mentioning wayland suggests a compositor-backed bridge; anything
// else decides nothing.
func probeCompositorName(d *xconn.Display) Result {
	name, err := ewmh.GetEwmhWM(d.XUtil())
	if err != nil {
		return Inconclusive
	}
	if strings.Contains(strings.ToLower(name), "wayland") {
		return Yes
	}
	return Inconclusive
}
