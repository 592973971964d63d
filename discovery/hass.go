package discovery

import (
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

// DefaultPrefix is the discovery prefix of a default Home Assistant MQTT setup.
const DefaultPrefix = "homeassistant"

// StatusTopic is the level below the discovery prefix where Home Assistant publishes its birth and last will.
const StatusTopic = "status"

// HomeAssistantAvailability returns a RemoteValue tracking whether Home Assistant is online. It changes to
// hass.Available every time Home Assistant starts, which is when discovery payloads and states must be sent again.
//
// See https://www.home-assistant.io/integrations/mqtt/#birth-and-last-will-messages.
func HomeAssistantAvailability(discoveryPrefix string) *mqtt.RemoteValue[hass.Availability] {
	return mqtt.NewRemoteValue(mqtt.JoinTopic(discoveryPrefix, StatusTopic), hass.AvailabilityUnmarshaler)
}
