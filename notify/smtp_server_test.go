package notify

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// capturedEmail is one message accepted by mockSMTPServer
type capturedEmail struct {
	From string
	To   []string
	Data string
}

// mockSMTPServer speaks just enough ESMTP for net/smtp to deliver a message
type mockSMTPServer struct {
	listener net.Listener
	fail     bool

	mu            sync.Mutex
	messages      []capturedEmail
	authenticated bool
}

func newMockSMTPServer(t *testing.T, fail bool) *mockSMTPServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := &mockSMTPServer{listener: l, fail: fail}
	go m.serve()
	t.Cleanup(func() { l.Close() })
	return m
}

func (m *mockSMTPServer) host() string {
	return m.listener.Addr().(*net.TCPAddr).IP.String()
}

func (m *mockSMTPServer) port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

func (m *mockSMTPServer) emails() []capturedEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capturedEmail(nil), m.messages...)
}

func (m *mockSMTPServer) sawAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

func (m *mockSMTPServer) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go m.handle(conn)
	}
}

func (m *mockSMTPServer) handle(conn net.Conn) {
	defer conn.Close()
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	reply("220 mock ESMTP")
	scanner := bufio.NewScanner(conn)
	var (
		from   string
		to     []string
		data   strings.Builder
		inData bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		upper := strings.ToUpper(line)

		if inData {
			if line == "." {
				m.mu.Lock()
				m.messages = append(m.messages, capturedEmail{From: from, To: to, Data: data.String()})
				m.mu.Unlock()
				inData, from, to = false, "", nil
				data.Reset()
				reply("250 OK")
				continue
			}
			data.WriteString(strings.TrimPrefix(line, ".") + "\r\n")
			continue
		}

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-mock")
			reply("250 AUTH PLAIN")
		case strings.HasPrefix(upper, "AUTH"):
			m.mu.Lock()
			m.authenticated = true
			m.mu.Unlock()
			reply("235 Authentication successful")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			if m.fail {
				reply("550 Rejected")
				continue
			}
			from = addressOf(line)
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			to = append(to, addressOf(line))
			reply("250 OK")
		case upper == "DATA":
			inData = true
			reply("354 End data with <CR><LF>.<CR><LF>")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func addressOf(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start >= 0 && end > start {
		return line[start+1 : end]
	}
	return strings.TrimSpace(line[strings.Index(line, ":")+1:])
}
