package pose

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rehab-data/motion.report/internal/monitoring"
)

// ErrNoData reports that no frame arrived within the tick's deadline. It is
// a per-tick condition, not a failure: the consumer skips the tick and polls
// again.
var ErrNoData = errors.New("pose: no frame available")

// Source produces skeleton frames. NextFrame blocks until a frame arrives,
// the context is done, or the source's own read deadline passes, in which
// case it returns ErrNoData.
type Source interface {
	NextFrame(ctx context.Context) (Frame, error)
	Close() error
}

// UDPSource reads skeleton datagrams from the pose-estimation bridge.
//
// Wire format: one datagram per frame, fields separated by '/':
//
//	name,x,y,z/name,x,y,z/...
//
// Coordinates are in the bridge's unit; Z is scaled by 100 on ingest so all
// axes share the unit the exercise axis thresholds were tuned against.
type UDPSource struct {
	conn        *net.UDPConn
	readTimeout time.Duration

	frames int64
	bytes  int64
}

// zScale matches the skeleton bridge, which sends Z in a unit 100x finer
// than X/Y.
const zScale = 100

// ListenUDP binds a UDPSource on addr (e.g. ":7000").
func ListenUDP(addr string, readTimeout time.Duration) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve skeleton listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen for skeleton frames: %w", err)
	}
	monitoring.Logf("skeleton source listening on udp %s", conn.LocalAddr())
	return &UDPSource{conn: conn, readTimeout: readTimeout}, nil
}

// NextFrame reads and parses one datagram. A read timeout or an empty
// datagram yields ErrNoData.
func (s *UDPSource) NextFrame(ctx context.Context) (Frame, error) {
	deadline := time.Now().Add(s.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set skeleton read deadline: %w", err)
	}

	buf := make([]byte, 4096)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("read skeleton datagram: %w", err)
	}

	atomic.AddInt64(&s.frames, 1)
	atomic.AddInt64(&s.bytes, int64(n))

	frame := ParseFrame(string(buf[:n]))
	if len(frame) == 0 {
		return nil, ErrNoData
	}
	return frame, nil
}

// Stats returns the running datagram and byte counters.
func (s *UDPSource) Stats() (frames, bytes int64) {
	return atomic.LoadInt64(&s.frames), atomic.LoadInt64(&s.bytes)
}

// Close releases the socket.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}

// ParseFrame decodes the bridge's text format. Malformed fields are skipped
// rather than failing the frame; a frame with no usable joints parses to an
// empty Frame.
func ParseFrame(payload string) Frame {
	frame := make(Frame)
	for _, part := range strings.Split(payload, "/") {
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 4 {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if errX != nil || errY != nil || errZ != nil {
			continue
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		frame[name] = Joint{Name: name, X: x, Y: y, Z: z * zScale, Visible: true}
	}
	return frame
}
