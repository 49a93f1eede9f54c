package probe

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"
)

// The protocol library generates no xinput package, and the probe only
// needs one request from it, so ListInputDevices is encoded by hand the
// same way the generated extensions do it.
const (
	xinputExtName      = "XInputExtension"
	opListInputDevices = 2
)

// listInputDeviceNames issues ListInputDevices and returns the device
// names in server order.
func listInputDeviceNames(c *xgb.Conn) ([]string, error) {
	reply, err := xproto.QueryExtension(c, uint16(len(xinputExtName)), xinputExtName).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "query XInputExtension")
	}
	if !reply.Present {
		return nil, errors.New("XInputExtension not present")
	}

	buf := make([]byte, 4)
	buf[0] = reply.MajorOpcode
	buf[1] = opListInputDevices
	xgb.Put16(buf[2:], 1) // length in 4-byte units

	cookie := c.NewCookie(true, true)
	c.NewRequest(buf, cookie)
	raw, err := cookie.Reply()
	if err != nil {
		return nil, errors.Wrap(err, "list input devices")
	}
	return parseDeviceNames(raw)
}

// parseDeviceNames decodes a ListInputDevices reply: the fixed header,
// devices_count DeviceInfo records (8 bytes each, class-info count at
// offset 5), the variable class-info blocks (length in their second
// byte), then the names as counted strings.
func parseDeviceNames(raw []byte) ([]string, error) {
	if len(raw) < 32 {
		return nil, errors.Errorf("short ListInputDevices reply: %d bytes", len(raw))
	}
	count := int(raw[8])
	p := 32

	classes := 0
	for i := 0; i < count; i++ {
		if p+8 > len(raw) {
			return nil, errors.New("truncated device info")
		}
		classes += int(raw[p+5])
		p += 8
	}
	for i := 0; i < classes; i++ {
		if p+2 > len(raw) {
			return nil, errors.New("truncated class info")
		}
		l := int(raw[p+1])
		if l < 2 {
			return nil, errors.Errorf("class info length %d", l)
		}
		p += l
	}

	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if p >= len(raw) {
			return nil, errors.New("truncated name list")
		}
		n := int(raw[p])
		p++
		if p+n > len(raw) {
			return nil, errors.New("truncated device name")
		}
		names = append(names, string(raw[p:p+n]))
		p += n
	}
	return names, nil
}
