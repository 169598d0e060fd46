package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"argus/core"
)

// ErrShortLine is returned for lines with fewer than five space-separated fields
var ErrShortLine = errors.New("syslog line has fewer than 5 fields")

const maxPriority = 191

// ParseSyslogLine parses "<timestamp> <hostname> <tag> <field> <message>".
// An optional "<PRI>" prefix sets the priority. A timestamp that is not
// RFC3339 is replaced by now.
func ParseSyslogLine(line, sourceIP string, now time.Time) (*core.Event, error) {
	line = strings.TrimSpace(line)
	priority, line := splitPriority(line)

	parts := strings.SplitN(line, " ", 5)
	if len(parts) < 5 {
		return nil, fmt.Errorf("%w: %q", ErrShortLine, truncate(line, 80))
	}

	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		ts = now
	}

	event := core.NewEvent()
	event.Timestamp = ts.UTC()
	event.Hostname = parts[1]
	event.Tag = parts[2]
	event.Message = parts[4]
	event.Priority = priority
	event.SourceIP = sourceIP
	return event, nil
}

// splitPriority strips a leading "<N>" where N is a valid syslog PRI value
func splitPriority(line string) (int, string) {
	if !strings.HasPrefix(line, "<") {
		return 0, line
	}
	end := strings.IndexByte(line, '>')
	if end < 2 || end > 4 {
		return 0, line
	}
	pri, err := strconv.Atoi(line[1:end])
	if err != nil || pri < 0 || pri > maxPriority {
		return 0, line
	}
	return pri, line[end+1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
