package world

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"schlangen.tv/relay/protocol"
)

func encode(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	data, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.Type(), err)
	}
	return data
}

func TestDispatchDropsMalformedFrames(t *testing.T) {
	d := NewDispatcher(New())
	var observed [][]byte
	d.OnMessage = func(raw []byte) { observed = append(observed, raw) }
	d.OnDecoded = func([]byte, protocol.Message) { t.Fatalf("malformed frame reported as decoded") }
	d.OnFrameComplete = func(uint64) { t.Fatalf("malformed frame completed a frame") }

	short, _ := msgpack.Marshal([]any{1})
	empty, _ := msgpack.Marshal([]any{})
	scalar, _ := msgpack.Marshal("hello")
	unknown, _ := msgpack.Marshal([]any{1, 0x55})
	badBody, _ := msgpack.Marshal([]any{1, 0x20, "not a bot"})
	frames := [][]byte{nil, short, empty, scalar, unknown, badBody}

	for _, f := range frames {
		d.Dispatch(f)
	}

	if len(observed) != len(frames) {
		t.Fatalf("hook saw %d frames, want %d", len(observed), len(frames))
	}
	stats := d.Stats()
	if stats.Frames != 6 || stats.Dropped != 6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(d.World().Bots()) != 0 || d.World().Food() != nil {
		t.Fatalf("malformed frames mutated the world")
	}
}

func TestDispatchHookSeesRawBytesBeforeDecode(t *testing.T) {
	d := NewDispatcher(New())
	spawn := encode(t, &protocol.BotSpawn{Bot: bot(3, 1)})

	d.OnMessage = func(raw []byte) {
		if !bytes.Equal(raw, spawn) {
			t.Fatalf("hook got different bytes")
		}
		if len(d.World().Bots()) != 0 {
			t.Fatalf("hook ran after the mutation")
		}
	}
	decoded := 0
	d.OnDecoded = func(raw []byte, msg protocol.Message) {
		decoded++
		if !bytes.Equal(raw, spawn) || msg.Type() != protocol.TypeBotSpawn {
			t.Fatalf("decoded hook got %s", msg.Type())
		}
		if len(d.World().Bots()) != 0 {
			t.Fatalf("decoded hook ran after the mutation")
		}
	}
	d.Dispatch(spawn)
	if d.World().Bot(3) == nil {
		t.Fatalf("spawn not applied")
	}
	if decoded != 1 {
		t.Fatalf("decoded hook ran %d times", decoded)
	}
}

func TestDispatchTickCompletesFrame(t *testing.T) {
	d := NewDispatcher(New())
	var completed []uint64
	d.OnFrameComplete = func(id uint64) { completed = append(completed, id) }

	d.Dispatch(encode(t, &protocol.Tick{}))
	d.Dispatch(encode(t, &protocol.Tick{FrameID: 40}))
	d.Dispatch(encode(t, &protocol.Tick{}))

	if len(completed) != 3 || completed[0] != 1 || completed[1] != 40 || completed[2] != 41 {
		t.Fatalf("unexpected frame ids %v", completed)
	}
	if d.FrameID() != 41 || d.Stats().Ticks != 3 {
		t.Fatalf("unexpected frame id %d / stats %+v", d.FrameID(), d.Stats())
	}
}

func TestDispatchRecordsLogItems(t *testing.T) {
	d := NewDispatcher(New())
	d.Dispatch(encode(t, &protocol.BotLog{ViewerKey: 1, Message: "a"}))
	d.Dispatch(encode(t, &protocol.BotLog{ViewerKey: 2, Message: "b"}))

	logs := d.PendingLogItems()
	if len(logs) != 2 || logs[0] != (LogItem{1, "a"}) || logs[1] != (LogItem{2, "b"}) {
		t.Fatalf("unexpected logs %+v", logs)
	}

	d.ClearLogItems()
	if len(d.PendingLogItems()) != 0 {
		t.Fatalf("logs not cleared")
	}
}

func TestDispatchFullSequence(t *testing.T) {
	d := NewDispatcher(New())
	for _, msg := range []protocol.Message{
		&protocol.GameInfo{WorldSizeX: 2000, WorldSizeY: 2000},
		&protocol.WorldUpdate{
			Bots: []protocol.BotItem{bot(1, 1, vec(10, 10))},
			Food: []protocol.FoodItem{food(100, 50, 50), food(101, 60, 60)},
		},
		&protocol.BotSpawn{Bot: bot(2, 1, vec(500, 500))},
		&protocol.BotMove{Items: []protocol.BotMoveItem{{BotID: 2, NewSegments: []protocol.Vec2{vec(501, 500)}, CurrentLength: 2, CurrentSegmentRadius: 1.5}}},
		&protocol.FoodConsume{Items: []protocol.FoodConsumeItem{{FoodID: 100, BotID: 1}}},
		&protocol.BotKill{KillerID: 2, VictimID: 1},
		&protocol.Tick{FrameID: 7},
	} {
		d.Dispatch(encode(t, msg))
	}

	w := d.World()
	if got := botGUIDs(w); len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected bots %v", got)
	}
	if len(w.Bot(2).Segments) != 2 || w.Bot(2).SegmentRadius != 1.5 {
		t.Fatalf("move not applied: %+v", w.Bot(2))
	}
	if w.FoodCount() != 1 {
		t.Fatalf("expected one food left, have %d", w.FoodCount())
	}
	if w.Segments().Len() != 2 {
		t.Fatalf("expected segment index rebuilt on tick, have %d", w.Segments().Len())
	}
	if d.Stats().Dropped != 0 {
		t.Fatalf("unexpected drops %+v", d.Stats())
	}
}
