package discovery

import (
	"bytes"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

func capturingEncoder() (*jsontext.Encoder, *bytes.Buffer) {
	b := &bytes.Buffer{}
	return jsontext.NewEncoder(b, jsontext.Multiline(false)), b
}

// object wraps fn in a json object so the result can be compared with JSONEq.
func object(t *testing.T, fn func(e *jsontext.Encoder) error) string {
	t.Helper()

	e, b := capturingEncoder()
	require.NoError(t, e.WriteToken(jsontext.BeginObject))
	require.NoError(t, fn(e))
	require.NoError(t, e.WriteToken(jsontext.EndObject))

	return strings.TrimSpace(b.String())
}

func TestDefaultMarshalers(t *testing.T) {
	t.Run("URL As String", func(t *testing.T) {
		e, b := capturingEncoder()

		u, err := url.Parse("http://homeassistant.local:8123")
		require.NoError(t, err)

		require.NoError(t, json.MarshalEncode(e, map[string]*url.URL{"cu": u}, json.WithMarshalers(Marshalers)))
		assert.JSONEq(t, `{"cu":"http://homeassistant.local:8123"}`, b.String())
	})

	t.Run("Duration As Integer Seconds", func(t *testing.T) {
		e, b := capturingEncoder()

		require.NoError(t, json.MarshalEncode(e, map[string]time.Duration{FieldExpireMeasurementsAfter: 2*time.Minute + 300*time.Millisecond}, json.WithMarshalers(Marshalers)))
		assert.JSONEq(t, `{"exp_aft":120}`, b.String())
	})
}

func TestTopics(t *testing.T) {
	state := mqtt.NewValue("state", mqtt.Float64Marshaler(2))

	for _, tt := range []struct {
		name string
		fn   func(e *jsontext.Encoder) error
		want string
		err  error
	}{
		{
			name: "Required Empty",
			fn:   func(e *jsontext.Encoder) error { return MarshalRequiredTopic("state", e, FieldStateTopic, "") },
			err:  ErrTopicRequired,
		},
		{
			name: "Required Nil Value",
			fn: func(e *jsontext.Encoder) error {
				return MarshalRequiredValueTopic[float64]("state", e, FieldStateTopic, nil, "powergroup")
			},
			err: ErrTopicRequired,
		},
		{
			name: "Required Value",
			fn: func(e *jsontext.Encoder) error {
				return MarshalRequiredValueTopic("state", e, FieldStateTopic, state, "powergroup/kitchen/power")
			},
			want: `{"stat_t":"powergroup/kitchen/power/state"}`,
		},
		{
			name: "Maybe Empty",
			fn:   func(e *jsontext.Encoder) error { return MaybeMarshalTopic(e, FieldAttributesTopic, "") },
			want: `{}`,
		},
		{
			name: "Maybe Nil Value",
			fn: func(e *jsontext.Encoder) error {
				return MaybeMarshalValueTopic[map[string]any](e, FieldAttributesTopic, nil, "powergroup")
			},
			want: `{}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				e, _ := capturingEncoder()
				require.ErrorIs(t, tt.fn(e), tt.err)
				return
			}

			assert.JSONEq(t, tt.want, object(t, tt.fn))
		})
	}
}

func TestStd(t *testing.T) {
	precision := uint(3)

	for _, tt := range []struct {
		name string
		fn   func(e *jsontext.Encoder) error
		want string
		err  error
	}{
		{
			name: "Required Nil",
			fn:   func(e *jsontext.Encoder) error { return MarshalStd[uint]("precision", e, FieldSuggestedDisplayPrecision, nil) },
			err:  ErrValueRequired,
		},
		{
			name: "Required",
			fn: func(e *jsontext.Encoder) error {
				return MarshalStd("precision", e, FieldSuggestedDisplayPrecision, &precision)
			},
			want: `{"sug_dsp_prc":3}`,
		},
		{
			name: "Maybe Nil",
			fn:   func(e *jsontext.Encoder) error { return MaybeMarshalStd[uint](e, FieldSuggestedDisplayPrecision, nil) },
			want: `{}`,
		},
		{
			name: "Slice Empty",
			fn:   func(e *jsontext.Encoder) error { return MaybeMarshalStdSlice[string](e, FieldOptions, nil) },
			want: `{}`,
		},
		{
			name: "Slice",
			fn: func(e *jsontext.Encoder) error {
				return MaybeMarshalStdSlice(e, FieldOptions, []string{"standby", "active"})
			},
			want: `{"ops":["standby","active"]}`,
		},
		{
			name: "Comparable Zero",
			fn: func(e *jsontext.Encoder) error {
				return MarshalStdComparable("state class", e, FieldStateClass, hass.StateClass(""))
			},
			err: ErrValueRequired,
		},
		{
			name: "Comparable",
			fn: func(e *jsontext.Encoder) error {
				return MarshalStdComparable("state class", e, FieldStateClass, hass.StateClassTotalIncreasing)
			},
			want: `{"stat_cla":"total_increasing"}`,
		},
		{
			name: "Maybe Comparable Zero",
			fn:   func(e *jsontext.Encoder) error { return MaybeMarshalStdComparable(e, FieldDeviceClass, hass.DeviceClassNone) },
			want: `{}`,
		},
		{
			name: "Maybe Comparable",
			fn: func(e *jsontext.Encoder) error {
				return MaybeMarshalStdComparable(e, FieldUnitOfMeasurement, hass.UnitKiloWattHour)
			},
			want: `{"unit_of_meas":"kWh"}`,
		},
		{
			name: "Inline Empty",
			fn:   func(e *jsontext.Encoder) error { return MaybeInlineMarshalStd(e, map[string]string{}) },
			want: `{}`,
		},
		{
			name: "Inline",
			fn: func(e *jsontext.Encoder) error {
				return MaybeInlineMarshalStd(e, map[string]string{"power": "sensor", "standby": "binary_sensor"})
			},
			want: `{"power":"sensor","standby":"binary_sensor"}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				e, _ := capturingEncoder()
				require.ErrorIs(t, tt.fn(e), tt.err)
				return
			}

			assert.JSONEq(t, tt.want, object(t, tt.fn))
		})
	}
}

