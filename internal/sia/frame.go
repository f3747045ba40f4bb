package sia

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// Protocol is the quoted token identifying the message type of a DC-09 frame.
type Protocol string

const (
	ProtocolNull         Protocol = "NULL"
	ProtocolSIA          Protocol = "SIA-DCS"
	ProtocolCID          Protocol = "ADM-CID"
	ProtocolEncryptedSIA Protocol = "*SIA-DCS"
	ProtocolEncryptedCID Protocol = "*ADM-CID"
	ProtocolAck          Protocol = "ACK"
)

// Frame is the result of parsing one wire frame. It is constructed per
// inbound frame, consumed immediately and never persisted.
type Frame struct {
	Raw          string
	Protocol     Protocol
	Sequence     string
	Receiver     string
	LinePrefix   string
	Account      string
	Event        *Event
	Timestamp    time.Time
	HasTimestamp bool
	CRCValid     bool
}

// Qualifier is the Contact-ID event qualifier digit.
type Qualifier int

const (
	QualifierEvent   Qualifier = 1
	QualifierRestore Qualifier = 3
	QualifierStatus  Qualifier = 6
)

// Event is a decoded Contact-ID or SIA event payload.
type Event struct {
	Qualifier   Qualifier
	Code        string
	Partition   int
	Zone        int
	Category    types.EventCategory
	Description string
	SIACode     string
}

// IsRestore reports whether the event closes out a previously reported one.
func (e *Event) IsRestore() bool {
	return e.Qualifier == QualifierRestore
}

const terminator = '\r'

var (
	// Primary field pattern: sequence, receiver, line prefix, account, data.
	// Example: 0045R579BDFL579BDF#12345A[#12345A|1130 00 005]
	fieldsRe = regexp.MustCompile(`^([0-9]{0,4})(R[0-9A-Fa-f]{1,6})?(L[0-9A-Fa-f]{1,6})?#([0-9A-Fa-f]+)(\[.*\])?$`)

	// Permissive fallbacks so a vendor deviation in one field doesn't fail
	// the whole frame.
	seqRe     = regexp.MustCompile(`^[0-9]{1,4}`)
	rcvrRe    = regexp.MustCompile(`R[0-9A-Fa-f]{1,6}`)
	lineRe    = regexp.MustCompile(`L[0-9A-Fa-f]{1,6}`)
	accountRe = regexp.MustCompile(`#([0-9A-Fa-f]+)`)
	dataRe    = regexp.MustCompile(`\[(.*)\]`)

	timestampRe = regexp.MustCompile(`_([0-9]{2}):([0-9]{2}):([0-9]{2}),([0-9]{2})-([0-9]{2})-([0-9]{4})$`)
)

// Decode parses a raw frame into a Frame. The trailing carriage return may be
// present or already stripped. A checksum mismatch does not reject the frame:
// garbled frames from field panels must still be processed and acknowledged
// where parseable, otherwise the panel may declare the receiver offline.
func Decode(raw []byte) (*Frame, error) {
	data := bytes.TrimSuffix(raw, []byte{terminator})

	open := bytes.IndexByte(data, '"')
	if open < 0 {
		return nil, fmt.Errorf("no protocol token in frame")
	}
	rel := bytes.IndexByte(data[open+1:], '"')
	if rel < 0 {
		return nil, fmt.Errorf("unterminated protocol token")
	}
	close := open + 1 + rel

	f := &Frame{
		Raw:      string(data),
		Protocol: Protocol(data[open+1 : close]),
	}

	f.CRCValid = checkCRC(data, open)

	fields := string(data[close+1:])

	if m := timestampRe.FindStringSubmatch(fields); m != nil {
		if ts, err := parseTimestamp(m); err == nil {
			f.Timestamp = ts
			f.HasTimestamp = true
		}
		fields = fields[:len(fields)-len(m[0])]
	}

	// A bare heartbeat carries no fields at all.
	if f.Protocol == ProtocolNull && strings.TrimSpace(fields) == "" {
		return f, nil
	}

	var payload string
	if m := fieldsRe.FindStringSubmatch(fields); m != nil {
		f.Sequence = m[1]
		f.Receiver = m[2]
		f.LinePrefix = m[3]
		f.Account = m[4]
		payload = strings.TrimSuffix(strings.TrimPrefix(m[5], "["), "]")
	} else {
		f.Sequence = seqRe.FindString(fields)
		f.Receiver = rcvrRe.FindString(fields)
		f.LinePrefix = lineRe.FindString(fields)
		if am := accountRe.FindStringSubmatch(fields); am != nil {
			f.Account = am[1]
		}
		if dm := dataRe.FindStringSubmatch(fields); dm != nil {
			payload = dm[1]
		}
	}

	if f.Receiver == "" {
		f.Receiver = "R0"
	}
	if f.LinePrefix == "" {
		f.LinePrefix = "L0"
	}
	if f.Account == "" {
		return nil, fmt.Errorf("frame has no account: %q", fields)
	}

	switch f.Protocol {
	case ProtocolCID, ProtocolEncryptedCID:
		f.Event = decodeContactID(payload)
	case ProtocolSIA, ProtocolEncryptedSIA:
		// Some panels tunnel Contact-ID inside SIA-DCS frames.
		if ev := decodeContactID(payload); ev != nil {
			f.Event = ev
		} else {
			f.Event = decodeSIA(payload)
		}
	}

	return f, nil
}

// checkCRC extracts the 4-hex-digit checksum preceding the opening quote and
// verifies it against the frame body. Both header fields are best-effort: a
// short or missing header just leaves the frame marked invalid.
func checkCRC(data []byte, open int) bool {
	header := bytes.TrimLeft(data[:open], "\n\r \t")
	if len(header) < 4 {
		return false
	}
	want, err := strconv.ParseUint(string(header[:4]), 16, 16)
	if err != nil {
		return false
	}
	return uint16(want) == Checksum(data[open:])
}

func parseTimestamp(m []string) (time.Time, error) {
	hour, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	month, _ := strconv.Atoi(m[4])
	day, _ := strconv.Atoi(m[5])
	year, _ := strconv.Atoi(m[6])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid timestamp fields")
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// EncodeAck builds the acknowledgement frame for a decoded frame, echoing
// back sequence, receiver, line prefix and account when the inbound frame
// carried them. Pure function: no socket, no clock, no timestamp suffix.
func EncodeAck(f *Frame) []byte {
	body := `"ACK"`
	if f.Sequence != "" || f.Account != "" {
		seq := f.Sequence
		if seq == "" {
			seq = "0000"
		}
		rcvr := f.Receiver
		if rcvr == "" {
			rcvr = "R0"
		}
		line := f.LinePrefix
		if line == "" {
			line = "L0"
		}
		body = fmt.Sprintf(`"ACK"%s%s%s#%s[]`, seq, rcvr, line, f.Account)
	}
	crc := Checksum([]byte(body))
	return []byte(fmt.Sprintf("\n%04X%04X%s\r", crc, len(body), body))
}
