// Package platform implements the Home Assistant MQTT platforms the power group device is made of: sensor for power
// and energy and binary_sensor for standby.
//
// Fields tagged `powergroup:"required"` must be set, marshaling fails otherwise.
package platform
