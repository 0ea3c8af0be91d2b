//go:build !rp2040

package rtc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// SNTP queries the time from an NTP server.
type SNTP struct {
	Host    string
	Port    int // zero means NTPPort
	Timeout time.Duration
}

// Query sends a single request to the server and returns its time.
func (s *SNTP) Query(ctx context.Context) (time.Time, error) {
	port := s.Port
	if port == 0 {
		port = NTPPort
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(s.Host, strconv.Itoa(port)))
	if err != nil {
		return time.Time{}, fmt.Errorf("rtc: ntp: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req := NTPRequest()
	if _, err := conn.Write(req[:]); err != nil {
		return time.Time{}, fmt.Errorf("rtc: ntp: %w", err)
	}
	var resp [NTPMsgLen]byte
	n, err := conn.Read(resp[:])
	if err != nil {
		return time.Time{}, fmt.Errorf("rtc: ntp: %w", err)
	}
	return ParseNTPResponse(resp[:n])
}

// Sync sets clk to the time of the server.
func (s *SNTP) Sync(ctx context.Context, clk Clock) error {
	t, err := s.Query(ctx)
	if err != nil {
		return err
	}
	clk.Set(t)
	return nil
}
