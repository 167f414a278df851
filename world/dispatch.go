package world

import "schlangen.tv/relay/protocol"

// LogItem is a log line waiting for the viewer holding ViewerKey.
type LogItem struct {
	ViewerKey uint64
	Message   string
}

type DispatchStats struct {
	Frames  uint64 // frames handed to Dispatch
	Dropped uint64 // frames that failed the envelope or body decode
	Ticks   uint64
}

// Dispatcher decodes upstream frames and applies them to a World.
type Dispatcher struct {
	world *World

	// OnMessage sees every frame verbatim before it is decoded, whether or
	// not decoding succeeds.
	OnMessage func(raw []byte)
	// OnDecoded sees every frame that decoded cleanly, before it is applied.
	OnDecoded func(raw []byte, msg protocol.Message)
	// OnFrameComplete runs after a TICK has been applied.
	OnFrameComplete func(frameID uint64)

	logs    []LogItem
	frameID uint64
	stats   DispatchStats
}

func NewDispatcher(w *World) *Dispatcher {
	return &Dispatcher{world: w}
}

// Dispatch handles one complete frame. Malformed frames and unknown tags are
// dropped without error.
func (d *Dispatcher) Dispatch(raw []byte) {
	d.stats.Frames++
	if d.OnMessage != nil {
		d.OnMessage(raw)
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		d.stats.Dropped++
		return
	}
	if d.OnDecoded != nil {
		d.OnDecoded(raw, msg)
	}

	switch m := msg.(type) {
	case *protocol.BotLog:
		d.logs = append(d.logs, LogItem{ViewerKey: m.ViewerKey, Message: m.Message})
	case *protocol.Tick:
		d.world.Apply(m)
		// Upstream frame ids win when present; otherwise count ticks.
		if m.FrameID != 0 {
			d.frameID = m.FrameID
		} else {
			d.frameID++
		}
		d.stats.Ticks++
		if d.OnFrameComplete != nil {
			d.OnFrameComplete(d.frameID)
		}
	default:
		d.world.Apply(m)
	}
}

// PendingLogItems returns the log items recorded since the last clear, in
// arrival order.
func (d *Dispatcher) PendingLogItems() []LogItem { return d.logs }

func (d *Dispatcher) ClearLogItems() {
	clear(d.logs)
	d.logs = d.logs[:0]
}

func (d *Dispatcher) World() *World { return d.world }

func (d *Dispatcher) FrameID() uint64 { return d.frameID }

func (d *Dispatcher) Stats() DispatchStats { return d.stats }
