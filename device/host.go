package device

import (
	"os"
	"runtime"
	"strings"
)

var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// HostAttributes reads attributes of the machine the process runs on.
//
// HardwareID is the systemd/dbus machine id when present, otherwise the
// hostname. Manufacturer is the OS, Model the architecture.
type HostAttributes struct{}

func (HostAttributes) Attributes() (Attributes, error) {
	hostname, _ := os.Hostname()

	hardwareID := ""
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err == nil {
			hardwareID = strings.TrimSpace(string(data))
			if hardwareID != "" {
				break
			}
		}
	}
	if hardwareID == "" {
		hardwareID = hostname
	}

	return Attributes{
		HardwareID:   hardwareID,
		Manufacturer: runtime.GOOS,
		Model:        runtime.GOARCH,
		Brand:        "go",
		Device:       hostname,
	}, nil
}
