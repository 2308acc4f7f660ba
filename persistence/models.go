package persistence

import "time"

type Host struct {
	Hostname     string `gorm:"primary_key"`
	Alive        bool
	Status       string
	ErrorMessage string
	LastChecked  time.Time
	LastAlive    time.Time
	Latency      time.Duration
	BytesRead    int64
	Issuer       string
	Expires      time.Time
	Checks       int64
	Failures     int64
	CreatedAt    time.Time
}

// Record is the /status representation of a host.
func (h Host) Record() map[string]any {
	return map[string]any{
		"Alive":        h.Alive,
		"Host":         h.Hostname,
		"Status":       h.Status,
		"ErrorMessage": h.ErrorMessage,
		"LastChecked":  h.LastChecked,
		"LastAlive":    h.LastAlive,
		"LatencyMs":    float64(h.Latency.Microseconds()) / 1000,
		"ReadBytes":    h.BytesRead,
		"Issuer":       h.Issuer,
		"Expires":      h.Expires,
		"Checks":       h.Checks,
		"Failures":     h.Failures,
	}
}
