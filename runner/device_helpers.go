package runner

import (
	"fmt"

	"github.com/notargets/gocca"
	"github.com/sirupsen/logrus"
)

// DefaultBackends lists OCCA device properties tried by CreateDevice, preferring
// parallel backends
var DefaultBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateDevice opens the first OCCA backend that initializes. With no
// arguments DefaultBackends is used.
func CreateDevice(backends ...string) (*gocca.OCCADevice, error) {
	if len(backends) == 0 {
		backends = DefaultBackends
	}
	var lastErr error
	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			logrus.WithField("mode", device.Mode()).Debug("created OCCA device")
			return device, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to create any OCCA device: %w", lastErr)
}

// ModeProps returns OCCA device properties for a mode name such as "Serial",
// "OpenMP" or "CUDA"
func ModeProps(mode string) string {
	if mode == "CUDA" {
		return `{"mode": "CUDA", "device_id": 0}`
	}
	return fmt.Sprintf(`{"mode": %q}`, mode)
}
