package correlate

import (
	"fmt"
	"sort"
	"strings"

	"argus/core"
)

// Detector analyses one batch of events. Detectors keep no state between
// batches.
type Detector interface {
	Name() string
	Detect(batch []core.Event) ([]*core.CorrelationAlert, error)
}

// Message markers the detectors filter on
const (
	FailedPasswordMarker    = "Failed password"
	ConnectionAttemptMarker = "Connection attempt"
	AcceptedPasswordMarker  = "Accepted password"
)

// Default group sizes a detector must strictly exceed
const (
	DefaultBruteForceThreshold      = 10
	DefaultPortScanThreshold        = 20
	DefaultLateralMovementThreshold = 3
)

// DefaultDetectors returns the built-in detectors in their fixed order
func DefaultDetectors() []Detector {
	return []Detector{
		&BruteForceDetector{Threshold: DefaultBruteForceThreshold},
		&PortScanDetector{Threshold: DefaultPortScanThreshold},
		&LateralMovementDetector{Threshold: DefaultLateralMovementThreshold},
	}
}

// BruteForceDetector flags repeated failed logins from one source to one host
type BruteForceDetector struct {
	Threshold int
}

func (d *BruteForceDetector) Name() string { return "brute_force" }

type sourceHost struct {
	sourceIP string
	hostname string
}

func (d *BruteForceDetector) Detect(batch []core.Event) ([]*core.CorrelationAlert, error) {
	attempts := make(map[sourceHost]int)
	var order []sourceHost
	for i := range batch {
		e := &batch[i]
		if !strings.Contains(e.Message, FailedPasswordMarker) {
			continue
		}
		key := sourceHost{sourceIP: e.SourceIP, hostname: e.Hostname}
		if _, seen := attempts[key]; !seen {
			order = append(order, key)
		}
		attempts[key]++
	}

	var alerts []*core.CorrelationAlert
	for _, key := range order {
		if attempts[key] > d.Threshold {
			alerts = append(alerts, core.NewCorrelationAlert(
				core.CorrelationBruteForce,
				core.SeverityHigh,
				key.sourceIP,
				fmt.Sprintf("Multiple failed login attempts from %s to %s", key.sourceIP, key.hostname),
			))
		}
	}
	return alerts, nil
}

// PortScanDetector flags one source probing many distinct ports
type PortScanDetector struct {
	Threshold int
}

func (d *PortScanDetector) Name() string { return "port_scan" }

func (d *PortScanDetector) Detect(batch []core.Event) ([]*core.CorrelationAlert, error) {
	targets := newSetMap()
	for i := range batch {
		e := &batch[i]
		if !strings.Contains(e.Message, ConnectionAttemptMarker) {
			continue
		}
		port, ok := ExtractPort(e.Message)
		if !ok {
			continue
		}
		targets.add(e.SourceIP, fmt.Sprint(port))
	}

	var alerts []*core.CorrelationAlert
	for _, sourceIP := range targets.keys() {
		if targets.size(sourceIP) > d.Threshold {
			alerts = append(alerts, core.NewCorrelationAlert(
				core.CorrelationPortScan,
				core.SeverityMedium,
				sourceIP,
				fmt.Sprintf("Port scanning activity from %s", sourceIP),
			))
		}
	}
	return alerts, nil
}

// LateralMovementDetector flags identities touching many resources. Users
// accumulate hostnames and source IPs accumulate users, both in one map keyed
// by the identity.
type LateralMovementDetector struct {
	Threshold int
}

func (d *LateralMovementDetector) Name() string { return "lateral_movement" }

func (d *LateralMovementDetector) Detect(batch []core.Event) ([]*core.CorrelationAlert, error) {
	access := newSetMap()
	for i := range batch {
		e := &batch[i]
		if !strings.Contains(e.Message, AcceptedPasswordMarker) {
			continue
		}
		user, ok := ExtractUsername(e.Message)
		if !ok {
			continue
		}
		access.add(user, e.Hostname)
		access.add(e.SourceIP, user)
	}

	var alerts []*core.CorrelationAlert
	for _, entity := range access.keys() {
		if n := access.size(entity); n > d.Threshold {
			alerts = append(alerts, core.NewCorrelationAlert(
				core.CorrelationLateralMovement,
				core.SeverityHigh,
				entity,
				fmt.Sprintf("Unusual access pattern for %s (%d accesses)", entity, n),
			))
		}
	}
	return alerts, nil
}

// setMap groups distinct members under a key
type setMap map[string]map[string]struct{}

func newSetMap() setMap {
	return make(setMap)
}

func (m setMap) add(key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func (m setMap) size(key string) int {
	return len(m[key])
}

// keys returns keys sorted so alert order is stable
func (m setMap) keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
