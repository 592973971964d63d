package mqtt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/mqtt"
	"github.com/mephdrac/powergroup/mqtt/mqtttest"
)

func TestValue(t *testing.T) {
	ctx := context.Background()

	t.Run("Write", func(t *testing.T) {
		b := mqtttest.New()
		sut := mqtt.NewValueWithOptions("power", mqtt.Float64Marshaler(2), mqtt.WriteOptions{Retain: true})

		_, ok := sut.Get()
		require.False(t, ok)

		_, err := sut.Write(ctx, b, "powergroup/kitchen", 123.456)
		require.NoError(t, err)

		v, ok := sut.Get()
		require.True(t, ok)
		assert.InDelta(t, 123.456, v, 1e-9)

		payload, ok := b.Retained("powergroup/kitchen/power")
		require.True(t, ok)
		assert.Equal(t, "123.46", string(payload))
	})

	t.Run("Republish", func(t *testing.T) {
		b := mqtttest.New()
		sut := mqtt.NewValue("power", mqtt.Float64Marshaler(0))

		_, err := sut.Republish(ctx, b, "")
		require.ErrorIs(t, err, mqtt.ErrNeverWritten)

		_, err = sut.Write(ctx, b, "", 7)
		require.NoError(t, err)
		_, err = sut.Republish(ctx, b, "")
		require.NoError(t, err)

		assert.Len(t, b.Messages(), 2)
	})

	t.Run("No Marshaler", func(t *testing.T) {
		_, err := mqtt.NewValue[float64]("power", nil).Write(ctx, mqtttest.New(), "", 1)
		require.ErrorIs(t, err, mqtt.ErrNoMarshaler)
	})

	t.Run("Writer Error", func(t *testing.T) {
		b := mqtttest.New()
		b.Err = errors.New("offline")

		_, err := mqtt.NewValue("power", mqtt.Float64Marshaler(0)).Write(ctx, b, "", 1)
		require.ErrorIs(t, err, b.Err)
	})

	t.Run("Nil Topic", func(t *testing.T) {
		var sut *mqtt.Value[float64]
		assert.Empty(t, sut.FullyQualifiedTopic("prefix"))
		assert.Empty(t, sut.Topic())
	})
}

func TestRemoteValue(t *testing.T) {
	t.Run("Watchers", func(t *testing.T) {
		sut := mqtt.NewRemoteValue("status", mqtt.StringUnmarshaler)

		var first, second []string
		id := sut.Watch(func(s string) { first = append(first, s) })
		sut.Watch(func(s string) { second = append(second, s) })

		sut.ServeMQTT(nil, "status", []byte("online"))
		sut.Unwatch(id)
		sut.Unwatch(id)
		sut.ServeMQTT(nil, "status", []byte("offline"))
		sut.ServeMQTT(nil, "other", []byte("ignored"))

		assert.Equal(t, []string{"online"}, first)
		assert.Equal(t, []string{"online", "offline"}, second)
	})

	t.Run("Unmarshal Failure", func(t *testing.T) {
		sut := mqtt.NewRemoteValue("power", mqtt.Float64Unmarshaler)
		sut.ServeMQTT(nil, "power", []byte("unavailable"))

		_, ok := sut.Get()
		assert.False(t, ok)
	})

	t.Run("Await Current", func(t *testing.T) {
		sut := mqtt.NewRemoteValue("status", mqtt.StringUnmarshaler)
		sut.ServeMQTT(nil, "status", []byte("online"))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		got, err := sut.Await(ctx, mqtt.DesiredValue("online"))
		require.NoError(t, err)
		assert.Equal(t, "online", got)
	})

	t.Run("Await Update", func(t *testing.T) {
		sut := mqtt.NewRemoteValue("status", mqtt.StringUnmarshaler)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		go func() {
			for ctx.Err() == nil {
				sut.ServeMQTT(nil, "status", []byte("offline"))
				sut.ServeMQTT(nil, "status", []byte("online"))
				time.Sleep(10 * time.Millisecond)
			}
		}()

		got, err := sut.Await(ctx, mqtt.DesiredValue("online"))
		require.NoError(t, err)
		assert.Equal(t, "online", got)
	})

	t.Run("Await Timeout", func(t *testing.T) {
		sut := mqtt.NewRemoteValue("status", mqtt.StringUnmarshaler)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := sut.Await(ctx, mqtt.DesiredValue("online"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
