package hass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerStateOf(t *testing.T) {
	assert.Equal(t, PowerStateOn, PowerStateOf(true))
	assert.Equal(t, PowerStateOff, PowerStateOf(false))

	b, err := PowerStateMarshaler(PowerStateOf(true))
	require.NoError(t, err)
	assert.Equal(t, "ON", string(b))
}

func TestAvailabilityUnmarshaler(t *testing.T) {
	v, err := AvailabilityUnmarshaler([]byte("offline"))
	require.NoError(t, err)
	assert.Equal(t, Unavailable, v)
}
