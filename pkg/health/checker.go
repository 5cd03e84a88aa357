// Package health queries a running SA-MP or open.mp server over the legacy
// UDP query protocol.
package health

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Health status levels
type HealthStatus string

const (
	HealthOK      HealthStatus = "ok"
	HealthSlow    HealthStatus = "slow"
	HealthTimeout HealthStatus = "timeout"
	HealthDown    HealthStatus = "down"
	HealthUnknown HealthStatus = "unknown"
)

const (
	queryMagic  = "SAMP"
	opcodeInfo  = 'i'
	headerSize  = 11
	maxDatagram = 2048
)

var errShortPacket = errors.New("short query response")

// ServerInfo is the answer to an 'i' query
type ServerInfo struct {
	Password   bool
	Players    int
	MaxPlayers int
	Hostname   string
	Gamemode   string
	Language   string
}

// HealthCheck represents the result of a query
type HealthCheck struct {
	Host       string
	Port       int
	Status     HealthStatus
	ResponseMs int
	Message    string
	Info       *ServerInfo
	LastCheck  time.Time
}

// Checker performs queries against game servers
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a new checker
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Check queries host:port for server information
func (c *Checker) Check(host string, port int) *HealthCheck {
	result := &HealthCheck{
		Host:      host,
		Port:      port,
		LastCheck: time.Now(),
	}

	start := time.Now()
	info, err := c.query(host, port)
	elapsed := int(time.Since(start).Milliseconds())
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			result.Status = HealthTimeout
			result.Message = fmt.Sprintf("no answer within %s", c.timeout)
			return result
		}
		result.Status = HealthDown
		result.Message = err.Error()
		return result
	}

	result.Status = categorizeResponse(elapsed)
	result.ResponseMs = elapsed
	result.Info = info
	result.Message = fmt.Sprintf("query answered in %dms", elapsed)
	return result
}

// BuildQuery encodes a query packet for opcode
func BuildQuery(ip net.IP, port int, opcode byte) []byte {
	pkt := make([]byte, 0, headerSize)
	pkt = append(pkt, queryMagic...)
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4(127, 0, 0, 1).To4()
	}
	pkt = append(pkt, v4...)
	pkt = binary.LittleEndian.AppendUint16(pkt, uint16(port))
	return append(pkt, opcode)
}

func (c *Checker) query(host string, port int) (*ServerInfo, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	req := BuildQuery(addr.IP, port, opcodeInfo)
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("failed to send query: %w", err)
	}

	buf := make([]byte, maxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return ParseInfo(buf[:n])
}

// ParseInfo decodes an 'i' response including its 11 byte header
func ParseInfo(pkt []byte) (*ServerInfo, error) {
	if len(pkt) < headerSize || string(pkt[:4]) != queryMagic || pkt[10] != opcodeInfo {
		return nil, fmt.Errorf("not a query response")
	}
	r := reader{buf: pkt[headerSize:]}
	info := &ServerInfo{}
	info.Password = r.u8() != 0
	info.Players = int(r.u16())
	info.MaxPlayers = int(r.u16())
	info.Hostname = r.str()
	info.Gamemode = r.str()
	info.Language = r.str()
	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}

type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = errShortPacket
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) str() string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	return string(r.take(int(binary.LittleEndian.Uint32(b))))
}

// categorizeResponse categorizes response time into status
func categorizeResponse(ms int) HealthStatus {
	if ms > 5000 {
		return HealthTimeout
	}
	if ms > 2000 {
		return HealthSlow
	}
	return HealthOK
}

// StatusIcon returns an emoji for the health status
func StatusIcon(status HealthStatus) string {
	switch status {
	case HealthOK:
		return "✅"
	case HealthSlow:
		return "⚠️"
	case HealthTimeout:
		return "🐢"
	case HealthDown:
		return "❌"
	default:
		return "❓"
	}
}
