package powergroup

import "net/url"

// Origin describes the software that publishes the discovered devices. Home Assistant logs it when a device is
// discovered or updated and requires it for device-based discovery.
type Origin struct {
	// The name of the application that is the origin of the discovered MQTT item.
	Name string `json:"name"`
	// Software version of the application that supplies the discovered MQTT item.
	SoftwareVersion string `json:"sw,omitempty"`
	// Support URL of the application that supplies the discovered MQTT item.
	SupportURL *url.URL `json:"url,omitempty"`
}

const (
	// Manufacturer is reported for every power group device.
	Manufacturer = "mephdrac"
	// Model is reported for every power group device.
	Model = "Power - Monitor"
)

// Version is overridden at build time with -ldflags "-X github.com/mephdrac/powergroup.Version=...".
var Version = "dev"

var supportURL, _ = url.Parse("https://github.com/mephdrac/power_group_monitor")

// DefaultOrigin is sent with every discovery payload unless Device.Origin is set.
func DefaultOrigin() Origin {
	return Origin{
		Name:            "power_group_monitor",
		SoftwareVersion: Version,
		SupportURL:      supportURL,
	}
}
