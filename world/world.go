package world

import "schlangen.tv/relay/protocol"

// MaxBotSegments caps the length a BOT_MOVE can grow a bot to.
const MaxBotSegments = 1 << 16

// Segment is one body segment of a bot, as held by the segment index.
type Segment struct {
	BotGUID  uint64
	Index    int
	Position protocol.Vec2
}

func (s Segment) Pos() protocol.Vec2 { return s.Position }

// World is the relay's model of the simulation. It is owned by a single
// goroutine and is not safe for concurrent use.
type World struct {
	info    protocol.GameInfo
	hasInfo bool

	// Bots keeps arrival order. Duplicated guids from repeated world updates
	// are kept; a kill removes every copy.
	bots []*protocol.BotItem

	// Nil until the first GAME_INFO.
	food     *Map[protocol.FoodItem]
	segments *Map[Segment]

	// Set by TICK; the segment index is rebuilt on its next read.
	segmentsStale bool
}

func New() *World {
	return &World{}
}

// Apply mutates the world according to msg. Messages that carry no world
// state (BOT_LOG) are ignored.
func (w *World) Apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.GameInfo:
		w.applyGameInfo(m)
	case *protocol.WorldUpdate:
		for i := range m.Bots {
			w.addBot(m.Bots[i])
		}
		w.addFood(m.Food)
	case *protocol.Tick:
		w.segmentsStale = true
	case *protocol.BotSpawn:
		w.addBot(m.Bot)
	case *protocol.BotKill:
		w.removeBots(m.VictimID)
	case *protocol.BotMove:
		w.applyBotMove(m)
	case *protocol.FoodSpawn:
		w.addFood(m.NewFood)
	case *protocol.FoodConsume:
		ids := make([]uint64, len(m.Items))
		for i, item := range m.Items {
			ids[i] = item.FoodID
		}
		w.removeFood(ids)
	case *protocol.FoodDecay:
		w.removeFood(m.FoodIDs)
	}
}

// applyGameInfo replaces the spatial containers. The bot collection is left
// alone: bots from a previous game persist until the simulation kills them.
func (w *World) applyGameInfo(m *protocol.GameInfo) {
	w.info = *m
	w.hasInfo = true
	w.food = NewMap[protocol.FoodItem](m.WorldSizeX, m.WorldSizeY, CellSize)
	w.segments = NewMap[Segment](m.WorldSizeX, m.WorldSizeY, CellSize)
}

func (w *World) addBot(b protocol.BotItem) {
	bot := b
	bot.Segments = append([]protocol.Vec2(nil), b.Segments...)
	w.bots = append(w.bots, &bot)
}

func (w *World) removeBots(guid uint64) int {
	kept := w.bots[:0]
	for _, b := range w.bots {
		if b.GUID != guid {
			kept = append(kept, b)
		}
	}
	removed := len(w.bots) - len(kept)
	for i := len(kept); i < len(w.bots); i++ {
		w.bots[i] = nil
	}
	w.bots = kept
	return removed
}

// applyBotMove stops at the first item naming an unknown bot; the remaining
// items of that message are not applied.
func (w *World) applyBotMove(m *protocol.BotMove) int {
	applied := 0
	for _, item := range m.Items {
		bot := w.Bot(item.BotID)
		if bot == nil {
			return applied
		}

		segs := make([]protocol.Vec2, 0, len(item.NewSegments)+len(bot.Segments))
		segs = append(segs, item.NewSegments...)
		segs = append(segs, bot.Segments...)

		n := int(min(item.CurrentLength, MaxBotSegments))
		if n <= len(segs) {
			segs = segs[:n]
		} else {
			segs = append(segs, make([]protocol.Vec2, n-len(segs))...)
		}
		bot.Segments = segs
		bot.SegmentRadius = item.CurrentSegmentRadius
		applied++
	}
	return applied
}

func (w *World) addFood(items []protocol.FoodItem) {
	if w.food == nil {
		return
	}
	for _, f := range items {
		w.food.Insert(f)
	}
}

func (w *World) removeFood(ids []uint64) int {
	if w.food == nil || len(ids) == 0 {
		return 0
	}
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return w.food.RemoveWhere(func(f protocol.FoodItem) bool {
		_, ok := set[f.GUID]
		return ok
	})
}

func (w *World) reindexSegments() {
	w.segmentsStale = false
	if w.segments == nil {
		return
	}
	w.segments.RemoveWhere(func(Segment) bool { return true })
	for _, b := range w.bots {
		for i, p := range b.Segments {
			w.segments.Insert(Segment{BotGUID: b.GUID, Index: i, Position: p})
		}
	}
}

// ---------------------------------------------------------------------------
// Read access
// ---------------------------------------------------------------------------

// Info returns the last GAME_INFO and whether one has been received.
func (w *World) Info() (protocol.GameInfo, bool) {
	return w.info, w.hasInfo
}

// Bot returns the first bot with guid, or nil.
func (w *World) Bot(guid uint64) *protocol.BotItem {
	for _, b := range w.bots {
		if b.GUID == guid {
			return b
		}
	}
	return nil
}

// Bots returns the bot collection in arrival order. Callers must not retain
// or modify it.
func (w *World) Bots() []*protocol.BotItem { return w.bots }

// Food returns the food map, or nil before the first GAME_INFO.
func (w *World) Food() *Map[protocol.FoodItem] { return w.food }

// Segments returns the segment index, or nil before the first GAME_INFO. The
// index only moves at frame boundaries: the first read after a TICK rebuilds
// it from the current bots.
func (w *World) Segments() *Map[Segment] {
	if w.segmentsStale {
		w.reindexSegments()
	}
	return w.segments
}

// SegmentCount is the number of indexed segments, 0 before the first GAME_INFO.
func (w *World) SegmentCount() int {
	segs := w.Segments()
	if segs == nil {
		return 0
	}
	return segs.Len()
}

func (w *World) FoodCount() int {
	if w.food == nil {
		return 0
	}
	return w.food.Len()
}

// Snapshot describes the whole world as envelopes a fresh viewer can replay:
// GAME_INFO when known, followed by one WORLD_UPDATE.
func (w *World) Snapshot() []protocol.Message {
	var out []protocol.Message
	if w.hasInfo {
		info := w.info
		out = append(out, &info)
	}

	update := &protocol.WorldUpdate{
		Bots: make([]protocol.BotItem, 0, len(w.bots)),
		Food: make([]protocol.FoodItem, 0, w.FoodCount()),
	}
	for _, b := range w.bots {
		update.Bots = append(update.Bots, *b)
	}
	if w.food != nil {
		w.food.ForEach(func(f protocol.FoodItem) bool {
			update.Food = append(update.Food, f)
			return true
		})
	}
	return append(out, update)
}
