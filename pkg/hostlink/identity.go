package hostlink

import (
	"github.com/denisbrodbeck/machineid"
)

// DeviceID retrieves the unique ID identifying this device. It is
// used to derive per-device MQTT topics.
func DeviceID() string {
	id, err := machineid.ID()
	if err != nil {
		panic(err)
	}
	return id
}
