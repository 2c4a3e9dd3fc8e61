// Package statecache keeps the last reported state of every entity seen by
// a host bridge and delivers state-value changes to automation listeners.
//
// Both host bridges (MQTT and Home Assistant) embed a Cache: their
// transport goroutines call Apply, and the Cache posts listener callbacks
// onto the event loop so door automations only ever run serially.
package statecache
