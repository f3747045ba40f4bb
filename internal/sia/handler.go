package sia

import (
	"bytes"
	"net"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/types"
	"github.com/alarmbridge/sia2mqtt/internal/util"
)

// maxBufferSize caps the per-connection accumulation buffer. A peer that
// never sends a terminator gets its buffer reset rather than growing without
// bound; the lost bytes are an accepted fail-safe tradeoff.
const maxBufferSize = 8 * 1024

// Handler owns one panel connection: it accumulates bytes until a frame
// terminator, decrypts and decodes each frame, always replies with an ACK,
// and hands typed notifications upward.
type Handler struct {
	conn        net.Conn
	log         *log.Logger
	account     string
	aesKey      string
	idleTimeout time.Duration

	onAlarm     func(types.AlarmEvent)
	onHeartbeat func(time.Time)
	onLive      func(time.Time)

	buf          []byte
	lastActivity time.Time
}

func newHandler(conn net.Conn, logger *log.Logger, account, aesKey string, idleTimeout time.Duration) *Handler {
	return &Handler{
		conn:        conn,
		log:         logger,
		account:     account,
		aesKey:      aesKey,
		idleTimeout: idleTimeout,
	}
}

// Run reads the connection until it closes or idles out. Leftover
// unterminated bytes are processed as a final best-effort frame: panels may
// omit the trailing terminator right before disconnecting.
func (h *Handler) Run() {
	if tc, ok := h.conn.(*net.TCPConn); ok {
		// The ACK must go out without coalescing delay or the panel may
		// declare the link dead.
		tc.SetNoDelay(true)
	}

	chunk := make([]byte, 1024)
	for {
		if h.idleTimeout > 0 {
			h.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		}
		n, err := h.conn.Read(chunk)
		if n > 0 {
			h.feed(chunk[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				h.log.Sia("Closing idle connection from %s", h.conn.RemoteAddr())
			}
			if rest := bytes.TrimSpace(h.buf); len(rest) > 0 {
				h.processFrame(rest)
			}
			h.buf = nil
			h.conn.Close()
			return
		}
	}
}

// feed appends a byte chunk to the session buffer and processes one frame
// per terminator found, leaving any remainder buffered.
func (h *Handler) feed(chunk []byte) {
	h.buf = append(h.buf, chunk...)
	if len(h.buf) > maxBufferSize {
		h.log.Warning("Connection buffer exceeded %d bytes, resetting", maxBufferSize)
		h.buf = h.buf[:0]
		return
	}
	for {
		i := bytes.IndexByte(h.buf, terminator)
		if i < 0 {
			return
		}
		frame := h.buf[:i]
		h.buf = h.buf[i+1:]
		if len(bytes.TrimSpace(frame)) > 0 {
			h.processFrame(frame)
		}
	}
}

func (h *Handler) processFrame(raw []byte) {
	if h.aesKey != "" {
		raw = DecryptFrame(raw, h.aesKey)
	}

	f, err := Decode(raw)
	if err != nil {
		// No ACK: without parsed fields we cannot construct a valid echo.
		h.log.Debug("Dropping undecodable frame from %s: %v", h.conn.RemoteAddr(), err)
		return
	}
	if !f.CRCValid {
		h.log.Warning("Checksum mismatch on frame from %s, processing anyway", h.conn.RemoteAddr())
	}

	// ACK first, before any event dispatch.
	if _, err := h.conn.Write(EncodeAck(f)); err != nil {
		h.log.Error("Failed to write ACK to %s: %v", h.conn.RemoteAddr(), err)
	}

	if h.account != "" && f.Account != "" && !accountMatches(h.account, f.Account) {
		h.log.Debug("Dropping frame for unconfigured account %s", f.Account)
		return
	}

	now := time.Now()
	h.lastActivity = now
	if h.onLive != nil {
		h.onLive(now)
	}

	if f.Protocol == ProtocolNull || f.Event == nil {
		h.log.Debug("Heartbeat from %s", h.conn.RemoteAddr())
		if h.onHeartbeat != nil {
			h.onHeartbeat(now)
		}
		return
	}

	ev := NormalizeEvent(f)
	h.log.Sia("Event %s (code %s, partition %d, zone %d) from account %s",
		ev.Type, ev.Code, ev.Partition, ev.Zone, ev.Account)
	if h.onAlarm != nil {
		h.onAlarm(ev)
	}
}

// accountMatches compares account ids leniently, ignoring leading zeros.
func accountMatches(configured, got string) bool {
	return util.StripLeadingZeros(configured) == util.StripLeadingZeros(got)
}
