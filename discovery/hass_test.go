package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/hass"
)

func TestHomeAssistantAvailability(t *testing.T) {
	for _, prefix := range []string{DefaultPrefix, "ha/discovery"} {
		t.Run(prefix, func(t *testing.T) {
			sut := HomeAssistantAvailability(prefix)
			subs := sut.AppendSubscribeOptions(nil, "")
			require.Len(t, subs, 1)
			require.Equal(t, prefix+"/status", subs[0].Topic)

			var seen []hass.Availability
			sut.Watch(func(a hass.Availability) { seen = append(seen, a) })

			sut.ServeMQTT(nil, subs[0].Topic, []byte("offline"))
			sut.ServeMQTT(nil, subs[0].Topic, []byte("online"))

			v, ok := sut.Get()
			assert.True(t, ok)
			assert.Equal(t, hass.Available, v)
			assert.Equal(t, []hass.Availability{hass.Unavailable, hass.Available}, seen)
		})
	}
}
