// Package energy contains the arithmetic behind a power group: summing member readings into one wattage, tracking the
// daily peak, classifying standby, integrating power into kWh and summing groups into fleet totals.
//
// Nothing in this package is safe for concurrent use. Every value is owned by a single event loop (see the monitor
// package) which feeds it samples in arrival order.
package energy
