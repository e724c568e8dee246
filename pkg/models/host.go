package models

import "time"

// HostStatus is the derived liveness state of a monitored host.
type HostStatus string

const (
	HostOnline    HostStatus = "online"
	HostOffline   HostStatus = "offline"
	HostThrottled HostStatus = "throttled"
)

// HostRecord is the identity and liveness view of a monitored host. Status is
// derived from the latest sample, never stored independently of it.
type HostRecord struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Hostname string     `json:"hostname"`
	OS       string     `json:"os"`
	Status   HostStatus `json:"status"`
	Uptime   uint64     `json:"uptime"`
	LastSeen time.Time  `json:"lastSeen"`
}
