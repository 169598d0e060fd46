package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"syscall"
)

// ClassifyConnectionError turns a store dial failure into an operator hint
func ClassifyConnectionError(err error, addr string) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Connection to %s timed out.\n"+
			"  Remediation:\n"+
			"  - Check the server is running and not overloaded\n"+
			"  - Verify network connectivity: nc -zv %s", addr, addr)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(msg, "connection refused") {
		return fmt.Sprintf("Connection refused at %s.\n"+
			"  This usually means the server is not running.\n"+
			"  Remediation:\n"+
			"  - Start the server and verify clickhouse.addr", addr)
	}

	if strings.Contains(msg, "no such host") || strings.Contains(msg, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in address %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname and DNS configuration", addr)
	}

	if strings.Contains(msg, "authentication") || strings.Contains(msg, "password") || strings.Contains(msg, "denied") {
		return fmt.Sprintf("Authentication failed at %s.\n"+
			"  Remediation:\n"+
			"  - Verify clickhouse.username and clickhouse.password\n"+
			"  - Check ARGUS_CLICKHOUSE_USERNAME and ARGUS_CLICKHOUSE_PASSWORD", addr)
	}

	return fmt.Sprintf("Failed to connect to %s: %v", addr, err)
}

// ClassifySQLiteError turns a SQLite open failure into an operator hint
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	absPath, _ := filepath.Abs(dbPath)
	parentDir := filepath.Dir(absPath)

	switch {
	case strings.Contains(msg, "permission denied"):
		return fmt.Sprintf("Permission denied accessing %s.\n"+
			"  Remediation:\n"+
			"  - Check permissions: ls -la %s", absPath, parentDir)
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy"):
		return fmt.Sprintf("Database %s is locked by another process.\n"+
			"  Remediation:\n"+
			"  - Check for another running argus instance", absPath)
	case strings.Contains(msg, "disk full") || strings.Contains(msg, "no space"):
		return fmt.Sprintf("Disk full, cannot write %s.\n"+
			"  Remediation:\n"+
			"  - Check free space: df -h %s", absPath, parentDir)
	case strings.Contains(msg, "corrupt") || strings.Contains(msg, "malformed"):
		return fmt.Sprintf("Database %s appears to be corrupted.\n"+
			"  Remediation:\n"+
			"  - Check integrity: sqlite3 %s \"PRAGMA integrity_check;\"", absPath, absPath)
	case strings.Contains(msg, "read-only"):
		return fmt.Sprintf("Database location %s is on a read-only file system", absPath)
	}
	return fmt.Sprintf("Failed to initialize SQLite database at %s: %v", absPath, err)
}
