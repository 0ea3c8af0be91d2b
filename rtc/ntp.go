package rtc

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	NTPPort   = 123
	NTPMsgLen = 48

	// ntpDelta is the number of seconds between 1900 and 1970.
	ntpDelta = 2208988800
)

var ErrBadResponse = errors.New("rtc: invalid NTP response")

// NTPRequest returns a client request in SNTP version 3.
func NTPRequest() (req [NTPMsgLen]byte) {
	req[0] = 0x1b // LI 0, version 3, mode 3 (client)
	return
}

// ParseNTPResponse returns the transmit time of a server response.
func ParseNTPResponse(b []byte) (time.Time, error) {
	if len(b) < NTPMsgLen {
		return time.Time{}, ErrBadResponse
	}
	mode, stratum := b[0]&0x7, b[1]
	if mode != 4 || stratum == 0 {
		return time.Time{}, ErrBadResponse
	}
	secs := binary.BigEndian.Uint32(b[40:])
	frac := binary.BigEndian.Uint32(b[44:])
	nsec := int64(frac) * 1e9 >> 32
	return time.Unix(int64(secs)-ntpDelta, nsec).UTC(), nil
}
