package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"schlangen.tv/relay/protocol"
	"schlangen.tv/relay/world"
)

// ---------------------------------------------------------------------------
// Fixed constants
// ---------------------------------------------------------------------------
const (
	ReadBufferSize = 4096
	StatsInterval  = 30 * time.Second
	statsTimeout   = 2 * time.Second
)

// ErrUpstreamClosed ends Relay.Run when the simulation connection is closed,
// errors, or returns no data.
var ErrUpstreamClosed = errors.New("upstream connection closed")

type keyUpdate struct {
	id  uuid.UUID
	key uint64
}

type upstreamRead struct {
	data []byte
	err  error
}

// Relay owns the world model and the viewer set. Everything it owns is
// touched only by the goroutine running Run; other goroutines reach it
// through channels.
type Relay struct {
	logger *log.Logger

	decoder    protocol.Decoder
	dispatcher *world.Dispatcher
	viewers    map[uuid.UUID]*Viewer

	// Envelopes observed since the last TICK, forwarded to synced viewers.
	frame   bytes.Buffer
	frameID uint64

	joinCh     chan *Viewer
	leaveCh    chan uuid.UUID
	keyCh      chan keyUpdate
	statsReqCh chan chan StatsSnapshot
	done       chan struct{}

	// Stats tracking
	startTime      time.Time
	totalJoins     int64
	totalLeaves    int64
	peakViewers    int
	upstreamBytes  int64
	totalBytesSent int64
	totalBytesRecv int64 // atomic, written from readPump goroutines
	droppedUpdates int64
}

func NewRelay(logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Default()
	}
	r := &Relay{
		logger:     logger,
		dispatcher: world.NewDispatcher(world.New()),
		viewers:    make(map[uuid.UUID]*Viewer),
		joinCh:     make(chan *Viewer, 32),
		leaveCh:    make(chan uuid.UUID, 32),
		keyCh:      make(chan keyUpdate, 64),
		statsReqCh: make(chan chan StatsSnapshot, 4),
		done:       make(chan struct{}),
		startTime:  time.Now(),
	}
	r.dispatcher.OnDecoded = r.observe
	r.dispatcher.OnFrameComplete = r.frameComplete
	return r
}

// World exposes the model for inspection. Only safe while Run is not active.
func (r *Relay) World() *world.World { return r.dispatcher.World() }

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// Run reads the upstream feed and serves viewer events until ctx is done or
// the upstream fails. An upstream failure is reported as ErrUpstreamClosed.
// Run must be called at most once.
func (r *Relay) Run(ctx context.Context, upstream io.Reader) error {
	defer r.shutdown()

	reads := make(chan upstreamRead, 16)
	go r.readUpstream(upstream, reads)

	statsTicker := time.NewTicker(StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rd := <-reads:
			if rd.err != nil {
				r.logger.Printf("[UPSTREAM] %v", rd.err)
				return rd.err
			}
			r.feed(rd.data)
		case v := <-r.joinCh:
			r.handleJoin(v)
		case id := <-r.leaveCh:
			r.handleLeave(id)
		case u := <-r.keyCh:
			r.handleKey(u)
		case replyCh := <-r.statsReqCh:
			replyCh <- r.buildSnapshot()
		case <-statsTicker.C:
			snap := r.buildSnapshot()
			r.logger.Printf("[STATS] uptime=%s viewers=%d peak=%d bots=%d segments=%d food=%d frame=%d upstream=%dB dropped=%d",
				snap.Uptime, snap.CurrentViewers, snap.PeakViewers, snap.BotCount,
				snap.SegmentCount, snap.FoodCount, snap.FrameID, snap.UpstreamBytes, snap.FramesDropped)
		}
	}
}

// feed decodes and dispatches every frame completed by data before returning,
// so a frame's broadcast always finishes before the next frame is decoded.
func (r *Relay) feed(data []byte) {
	r.upstreamBytes += int64(len(data))
	for _, frame := range r.decoder.Feed(data) {
		r.dispatcher.Dispatch(frame)
	}
}

// readUpstream pushes every chunk read from upstream to out. A read that
// returns an error or no bytes at all is terminal.
func (r *Relay) readUpstream(upstream io.Reader, out chan<- upstreamRead) {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			rd := upstreamRead{data: append([]byte(nil), buf[:n]...)}
			select {
			case out <- rd:
			case <-r.done:
				return
			}
		}
		if err == nil && n > 0 {
			continue
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		select {
		case out <- upstreamRead{err: fmt.Errorf("%w: %w", ErrUpstreamClosed, err)}:
		case <-r.done:
		}
		return
	}
}

func (r *Relay) shutdown() {
	close(r.done)
	for id, v := range r.viewers {
		v.close()
		delete(r.viewers, id)
	}
	// Joins that were queued but never handled.
	for {
		select {
		case v := <-r.joinCh:
			v.close()
		default:
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Viewer events (called from the Run goroutine only)
// ---------------------------------------------------------------------------

func (r *Relay) handleJoin(v *Viewer) {
	r.viewers[v.id] = v
	r.totalJoins++
	if len(r.viewers) > r.peakViewers {
		r.peakViewers = len(r.viewers)
	}
	r.logger.Printf("[JOIN] viewer %s (%s) connected (viewers: %d, peak: %d)", v.id, v.remote, len(r.viewers), r.peakViewers)
}

func (r *Relay) handleLeave(id uuid.UUID) {
	if _, ok := r.viewers[id]; !ok {
		return
	}
	delete(r.viewers, id)
	r.totalLeaves++
	r.logger.Printf("[LEAVE] viewer %s disconnected (viewers: %d)", id, len(r.viewers))
}

func (r *Relay) handleKey(u keyUpdate) {
	v, ok := r.viewers[u.id]
	if !ok {
		return
	}
	v.key = u.key
	r.logger.Printf("[KEY] viewer %s set viewer key %d", u.id, u.key)
}

// ---------------------------------------------------------------------------
// Channel submission (safe from any goroutine)
// ---------------------------------------------------------------------------

func (r *Relay) join(v *Viewer) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.joinCh <- v:
		return true
	case <-r.done:
		return false
	}
}

func (r *Relay) leave(id uuid.UUID) {
	select {
	case r.leaveCh <- id:
	case <-r.done:
	}
}

func (r *Relay) setKey(id uuid.UUID, key uint64) {
	select {
	case r.keyCh <- keyUpdate{id: id, key: key}:
	case <-r.done:
	}
}

// Stats asks the Run goroutine for a snapshot. It reports false when the relay
// has stopped or does not answer in time.
func (r *Relay) Stats() (StatsSnapshot, bool) {
	replyCh := make(chan StatsSnapshot, 1)
	timeout := time.NewTimer(statsTimeout)
	defer timeout.Stop()

	select {
	case r.statsReqCh <- replyCh:
	case <-r.done:
		return StatsSnapshot{}, false
	case <-timeout.C:
		return StatsSnapshot{}, false
	}
	select {
	case snap := <-replyCh:
		return snap, true
	case <-r.done:
		return StatsSnapshot{}, false
	case <-timeout.C:
		return StatsSnapshot{}, false
	}
}

// Done is closed once Run has returned.
func (r *Relay) Done() <-chan struct{} { return r.done }
