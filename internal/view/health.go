package view

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// HealthLevel derived status of one component.
type HealthLevel int

const (
	HealthOK HealthLevel = iota
	HealthDegraded
	HealthStale
	HealthNoData
	HealthDown
)

func (l HealthLevel) String() string {
	switch l {
	case HealthOK:
		return "ok"
	case HealthDegraded:
		return "degraded"
	case HealthStale:
		return "stale"
	case HealthNoData:
		return "no_data"
	case HealthDown:
		return "down"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the level as its string form.
func (l HealthLevel) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", l.String())), nil
}

// UnmarshalJSON decodes the string form back into a level.
func (l *HealthLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*l = HealthOK
	case "degraded":
		*l = HealthDegraded
	case "stale":
		*l = HealthStale
	case "no_data":
		*l = HealthNoData
	case "down":
		*l = HealthDown
	default:
		return fmt.Errorf("unknown health level %q", s)
	}
	return nil
}

// HealthStatus one row of the health banner.
type HealthStatus struct {
	Component string      `json:"component"`
	Level     HealthLevel `json:"level"`
	// Age time since the component last reported; zero for sentinel
	// values (never rendered as a duration in that case).
	Age    time.Duration `json:"age_ms"`
	Detail string        `json:"detail,omitempty"`
}

// Thresholds staleness limits for health derivation.
type Thresholds struct {
	Warn time.Duration
	Bad  time.Duration
}

// HealthFor derives per-component health from the snapshot.
//
// Price feeds report their age as "seconds since update"; the backend
// fills a huge sentinel (or a negative value) while a source has not
// delivered data yet, and that case maps to no_data, never to a
// literal age.
func HealthFor(s *domain.StateSnapshot, now time.Time, th Thresholds) []HealthStatus {
	if s == nil {
		return []HealthStatus{{Component: "backend", Level: HealthDown, Detail: "no snapshot received yet"}}
	}

	statuses := make([]HealthStatus, 0, len(s.Prices)+2)

	snapshotAge := now.Sub(s.Timestamp)
	backend := HealthStatus{Component: "backend", Age: snapshotAge}
	switch {
	case snapshotAge > th.Bad:
		backend.Level = HealthStale
		backend.Detail = "snapshot is not advancing"
	case snapshotAge > th.Warn:
		backend.Level = HealthDegraded
	}
	statuses = append(statuses, backend)

	ws := HealthStatus{Component: "exchange_ws"}
	if !s.WSConnected {
		ws.Level = HealthDown
		ws.Detail = "backend lost its exchange websocket"
	}
	statuses = append(statuses, ws)

	feeds := make([]string, 0, len(s.Prices))
	for name := range s.Prices {
		feeds = append(feeds, name)
	}
	sort.Strings(feeds)

	for _, name := range feeds {
		feed := s.Prices[name]
		status := HealthStatus{Component: "feed:" + name}
		if !feed.HasData() {
			status.Level = HealthNoData
			status.Detail = "no data yet"
			statuses = append(statuses, status)
			continue
		}

		status.Age = time.Duration(feed.SecondsSinceUpdate * float64(time.Second))
		switch {
		case status.Age > th.Bad:
			status.Level = HealthStale
		case status.Age > th.Warn:
			status.Level = HealthDegraded
		}
		statuses = append(statuses, status)
	}

	return statuses
}

// Overall returns the worst level across statuses.
func Overall(statuses []HealthStatus) HealthLevel {
	worst := HealthOK
	for _, st := range statuses {
		if st.Level > worst {
			worst = st.Level
		}
	}
	return worst
}
