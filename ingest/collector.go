package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"argus/core"
	"argus/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxTCPConnections = 1000
	tcpIdleTimeout           = 5 * time.Minute
	udpReadTimeout           = time.Second
)

// CollectorConfig configures the syslog listeners
type CollectorConfig struct {
	UDPAddr string
	TCPAddr string
	// RateLimit and Burst apply per source IP
	RateLimit     float64
	Burst         int
	MaxSources    int
	MaxLineLength int
	MaxTCPConns   int
}

// Collector receives syslog lines over UDP and TCP and publishes each parsed
// line as a JSON event
type Collector struct {
	cfg       CollectorConfig
	publisher Publisher
	limiters  *lru.Cache[string, *rate.Limiter]
	connSem   chan struct{}
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu          sync.Mutex
	udpConn     net.PacketConn
	tcpListener net.Listener
	wg          sync.WaitGroup
}

func NewCollector(cfg CollectorConfig, publisher Publisher, logger *zap.SugaredLogger) (*Collector, error) {
	if cfg.UDPAddr == "" && cfg.TCPAddr == "" {
		return nil, errors.New("collector needs at least one of udp or tcp address")
	}
	if cfg.RateLimit <= 0 || cfg.Burst < 1 {
		return nil, fmt.Errorf("invalid collector rate limit %v/%d", cfg.RateLimit, cfg.Burst)
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 10000
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = 64 * 1024
	}
	if cfg.MaxTCPConns <= 0 {
		cfg.MaxTCPConns = defaultMaxTCPConnections
	}
	limiters, err := lru.New[string, *rate.Limiter](cfg.MaxSources)
	if err != nil {
		return nil, fmt.Errorf("limiter cache: %w", err)
	}
	return &Collector{
		cfg:       cfg,
		publisher: publisher,
		limiters:  limiters,
		connSem:   make(chan struct{}, cfg.MaxTCPConns),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start binds the configured listeners and serves them in the background
// until ctx is cancelled or Stop is called
func (c *Collector) Start(ctx context.Context) error {
	if c.cfg.UDPAddr != "" {
		conn, err := net.ListenPacket("udp", c.cfg.UDPAddr)
		if err != nil {
			return fmt.Errorf("failed to start UDP listener: %w", err)
		}
		c.mu.Lock()
		c.udpConn = conn
		c.mu.Unlock()
		c.logger.Infow("Syslog UDP listener started", "addr", conn.LocalAddr().String())
		c.wg.Add(1)
		go c.serveUDP(ctx, conn)
	}
	if c.cfg.TCPAddr != "" {
		l, err := net.Listen("tcp", c.cfg.TCPAddr)
		if err != nil {
			c.Stop()
			return fmt.Errorf("failed to start TCP listener: %w", err)
		}
		c.mu.Lock()
		c.tcpListener = l
		c.mu.Unlock()
		c.logger.Infow("Syslog TCP listener started", "addr", l.Addr().String(), "max_connections", c.cfg.MaxTCPConns)
		c.wg.Add(1)
		go c.serveTCP(ctx, l)
	}

	go func() {
		<-ctx.Done()
		c.closeListeners()
	}()
	return nil
}

// UDPAddr returns the bound UDP address, or nil
func (c *Collector) UDPAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.udpConn == nil {
		return nil
	}
	return c.udpConn.LocalAddr()
}

// TCPAddr returns the bound TCP address, or nil
func (c *Collector) TCPAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tcpListener == nil {
		return nil
	}
	return c.tcpListener.Addr()
}

// Stop closes the listeners and waits for in-flight lines
func (c *Collector) Stop() {
	c.closeListeners()
	c.wg.Wait()
}

func (c *Collector) closeListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.udpConn != nil {
		c.udpConn.Close()
	}
	if c.tcpListener != nil {
		c.tcpListener.Close()
	}
}

func (c *Collector) serveUDP(ctx context.Context, conn net.PacketConn) {
	defer c.wg.Done()
	buffer := make([]byte, c.cfg.MaxLineLength)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Errorw("UDP read error", "error", err)
			continue
		}
		c.process(ctx, string(buffer[:n]), hostOf(addr.String()), "udp")
	}
}

func (c *Collector) serveTCP(ctx context.Context, l net.Listener) {
	defer c.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Errorw("TCP accept error", "error", err)
			continue
		}

		select {
		case c.connSem <- struct{}{}:
			c.wg.Add(1)
			go c.handleTCP(ctx, conn)
		default:
			c.logger.Warnw("TCP connection pool full, rejecting connection",
				"remote", conn.RemoteAddr().String(),
				"max_connections", c.cfg.MaxTCPConns)
			conn.Close()
		}
	}
}

func (c *Collector) handleTCP(ctx context.Context, conn net.Conn) {
	defer c.wg.Done()
	defer func() { <-c.connSem }()
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	source := hostOf(conn.RemoteAddr().String())
	_ = conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), c.cfg.MaxLineLength)
	for scanner.Scan() {
		c.process(ctx, scanner.Text(), source, "tcp")
		_ = conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debugw("TCP connection ended", "source_ip", source, "error", err)
	}
}

// process parses one line and publishes it. Every outcome is counted.
func (c *Collector) process(ctx context.Context, raw, source, transport string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}
	if !c.limiter(source).Allow() {
		metrics.CollectorLines.WithLabelValues(transport, "rate_limited").Inc()
		return
	}

	event, err := ParseSyslogLine(line, source, c.now().UTC())
	if err != nil {
		metrics.CollectorLines.WithLabelValues(transport, "invalid").Inc()
		c.logger.Warnw("Invalid syslog message", "source_ip", source, "error", err)
		return
	}

	if err := c.publish(ctx, event); err != nil {
		metrics.CollectorLines.WithLabelValues(transport, "publish_failed").Inc()
		c.logger.Errorw("Failed to publish event", "source_ip", source, "error", err)
		return
	}
	metrics.CollectorLines.WithLabelValues(transport, "published").Inc()
}

func (c *Collector) publish(ctx context.Context, event *core.Event) error {
	data, err := core.EncodeEvent(event)
	if err != nil {
		return err
	}
	return c.publisher.Publish(context.WithoutCancel(ctx), data)
}

// limiter returns the per-source limiter, evicting the least recently seen
// source when the table is full
func (c *Collector) limiter(source string) *rate.Limiter {
	if l, ok := c.limiters.Get(source); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(c.cfg.RateLimit), c.cfg.Burst)
	if prev, ok, _ := c.limiters.PeekOrAdd(source, l); ok {
		return prev
	}
	return l
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
