package world

import (
	"reflect"
	"testing"

	"schlangen.tv/relay/protocol"
)

func vec(x, y float64) protocol.Vec2 { return protocol.Vec2{X: x, Y: y} }

func bot(guid uint64, radius float64, segs ...protocol.Vec2) protocol.BotItem {
	return protocol.BotItem{GUID: guid, Name: "bot", SegmentRadius: radius, Segments: segs}
}

func botGUIDs(w *World) []uint64 {
	var out []uint64
	for _, b := range w.Bots() {
		out = append(out, b.GUID)
	}
	return out
}

func TestGameInfoKeepsBots(t *testing.T) {
	w := New()
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 1, vec(0, 0))})
	w.Apply(&protocol.GameInfo{WorldSizeX: 3000, WorldSizeY: 2000})

	if w.Food() == nil {
		t.Fatalf("expected food map after GAME_INFO")
	}
	w.Apply(&protocol.FoodSpawn{NewFood: []protocol.FoodItem{food(5, 10, 10)}})
	if w.FoodCount() != 1 {
		t.Fatalf("expected food map to accept insertions, have %d", w.FoodCount())
	}
	if got := botGUIDs(w); !reflect.DeepEqual(got, []uint64{1}) {
		t.Fatalf("bots changed by GAME_INFO: %v", got)
	}

	// A second GAME_INFO replaces food but still leaves bots alone.
	w.Apply(&protocol.GameInfo{WorldSizeX: 1000, WorldSizeY: 1000})
	if w.FoodCount() != 0 {
		t.Fatalf("expected fresh food map, have %d", w.FoodCount())
	}
	if got := botGUIDs(w); !reflect.DeepEqual(got, []uint64{1}) {
		t.Fatalf("bots changed by second GAME_INFO: %v", got)
	}
	info, ok := w.Info()
	if !ok || info.WorldSizeX != 1000 {
		t.Fatalf("unexpected info %+v ok=%v", info, ok)
	}
}

func TestFoodIgnoredBeforeGameInfo(t *testing.T) {
	w := New()
	w.Apply(&protocol.FoodSpawn{NewFood: []protocol.FoodItem{food(1, 1, 1)}})
	w.Apply(&protocol.WorldUpdate{
		Bots: []protocol.BotItem{bot(2, 1)},
		Food: []protocol.FoodItem{food(3, 1, 1)},
	})
	w.Apply(&protocol.FoodDecay{FoodIDs: []uint64{1}})

	if w.Food() != nil || w.FoodCount() != 0 {
		t.Fatalf("food applied before GAME_INFO")
	}
	if got := botGUIDs(w); !reflect.DeepEqual(got, []uint64{2}) {
		t.Fatalf("bots from WORLD_UPDATE should still apply, got %v", got)
	}
}

func TestBotLifecycle(t *testing.T) {
	w := New()
	w.Apply(&protocol.BotSpawn{Bot: bot(7, 1, vec(1, 1))})
	w.Apply(&protocol.BotSpawn{Bot: bot(8, 1, vec(2, 2))})

	w.Apply(&protocol.BotKill{KillerID: 8, VictimID: 7})
	if w.Bot(7) != nil {
		t.Fatalf("bot 7 still present after kill")
	}
	w.Apply(&protocol.BotKill{KillerID: 8, VictimID: 7})
	if got := botGUIDs(w); !reflect.DeepEqual(got, []uint64{8}) {
		t.Fatalf("second kill changed bots: %v", got)
	}
}

func TestWorldUpdateAppendsDuplicates(t *testing.T) {
	w := New()
	update := &protocol.WorldUpdate{Bots: []protocol.BotItem{bot(4, 1)}}
	w.Apply(update)
	w.Apply(update)
	if got := botGUIDs(w); !reflect.DeepEqual(got, []uint64{4, 4}) {
		t.Fatalf("expected duplicated guid, got %v", got)
	}

	w.Apply(&protocol.BotKill{VictimID: 4})
	if len(w.Bots()) != 0 {
		t.Fatalf("kill should remove every copy, have %v", botGUIDs(w))
	}
}

func TestFoodLifecycle(t *testing.T) {
	w := New()
	w.Apply(&protocol.GameInfo{WorldSizeX: 2000, WorldSizeY: 2000})
	w.Apply(&protocol.FoodSpawn{NewFood: []protocol.FoodItem{food(10, 5, 5), food(11, 1500, 1500)}})

	w.Apply(&protocol.FoodConsume{Items: []protocol.FoodConsumeItem{{FoodID: 99, BotID: 1}}})
	if w.FoodCount() != 2 {
		t.Fatalf("consuming an unrelated guid removed food, have %d", w.FoodCount())
	}

	w.Apply(&protocol.FoodConsume{Items: []protocol.FoodConsumeItem{{FoodID: 10, BotID: 1}}})
	if w.FoodCount() != 1 {
		t.Fatalf("expected exactly one removal, have %d", w.FoodCount())
	}

	w.Apply(&protocol.FoodDecay{FoodIDs: []uint64{11, 10}})
	if w.FoodCount() != 0 {
		t.Fatalf("expected decay to remove the rest, have %d", w.FoodCount())
	}
}

func TestBotMovePrependsAndResizes(t *testing.T) {
	w := New()
	p0, p1, p2 := vec(0, 0), vec(1, 0), vec(2, 0)
	q0 := vec(-1, 0)
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 2, p0, p1, p2)})

	w.Apply(&protocol.BotMove{Items: []protocol.BotMoveItem{{
		BotID:                1,
		NewSegments:          []protocol.Vec2{q0},
		CurrentLength:        3,
		CurrentSegmentRadius: 5,
	}}})

	b := w.Bot(1)
	if want := []protocol.Vec2{q0, p0, p1}; !reflect.DeepEqual(b.Segments, want) {
		t.Fatalf("segments = %v, want %v", b.Segments, want)
	}
	if b.SegmentRadius != 5 {
		t.Fatalf("radius = %v, want 5", b.SegmentRadius)
	}
}

func TestBotMovePadsWithZeroSegments(t *testing.T) {
	w := New()
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 2, vec(3, 3))})
	w.Apply(&protocol.BotMove{Items: []protocol.BotMoveItem{{
		BotID:         1,
		NewSegments:   []protocol.Vec2{vec(4, 4)},
		CurrentLength: 4,
	}}})

	want := []protocol.Vec2{vec(4, 4), vec(3, 3), {}, {}}
	if got := w.Bot(1).Segments; !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %v, want %v", got, want)
	}
}

// An unknown bot aborts the rest of the batch rather than skipping one item.
func TestBotMoveUnknownGUIDAbortsBatch(t *testing.T) {
	w := New()
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 1, vec(0, 0))})
	w.Apply(&protocol.BotSpawn{Bot: bot(2, 1, vec(0, 0))})

	w.Apply(&protocol.BotMove{Items: []protocol.BotMoveItem{
		{BotID: 1, NewSegments: []protocol.Vec2{vec(1, 1)}, CurrentLength: 2, CurrentSegmentRadius: 9},
		{BotID: 404, NewSegments: []protocol.Vec2{vec(1, 1)}, CurrentLength: 1},
		{BotID: 2, NewSegments: []protocol.Vec2{vec(5, 5)}, CurrentLength: 2, CurrentSegmentRadius: 9},
	}})

	if w.Bot(1).SegmentRadius != 9 || len(w.Bot(1).Segments) != 2 {
		t.Fatalf("first item should apply, got %+v", w.Bot(1))
	}
	if w.Bot(2).SegmentRadius != 1 || len(w.Bot(2).Segments) != 1 {
		t.Fatalf("items after the unknown bot should not apply, got %+v", w.Bot(2))
	}
}

func TestSpawnCopiesSegments(t *testing.T) {
	w := New()
	spawn := &protocol.BotSpawn{Bot: bot(1, 1, vec(1, 1))}
	w.Apply(spawn)
	spawn.Bot.Segments[0] = vec(9, 9)
	if w.Bot(1).Segments[0] != vec(1, 1) {
		t.Fatalf("world aliases message segments")
	}
}

func TestTickReindexesSegments(t *testing.T) {
	w := New()
	w.Apply(&protocol.GameInfo{WorldSizeX: 3000, WorldSizeY: 3000})
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 1, vec(100, 100), vec(2500, 2500))})
	w.Apply(&protocol.Tick{})
	if w.segments.Len() != 0 {
		t.Fatalf("index rebuilt before anyone read it")
	}

	if w.Segments().Len() != 2 {
		t.Fatalf("expected 2 indexed segments, got %d", w.Segments().Len())
	}
	var near []Segment
	w.Segments().ForEachIn(0, 0, 500, 500, func(s Segment) bool {
		near = append(near, s)
		return true
	})
	if len(near) != 1 || near[0].BotGUID != 1 || near[0].Index != 0 {
		t.Fatalf("unexpected segments near origin %+v", near)
	}

	// Mid-frame changes stay out of the index until the next TICK.
	w.Apply(&protocol.BotKill{VictimID: 1})
	if w.SegmentCount() != 2 {
		t.Fatalf("index changed before the frame ended: %d", w.SegmentCount())
	}
	w.Apply(&protocol.Tick{})
	if w.SegmentCount() != 0 {
		t.Fatalf("expected index cleared, got %d", w.SegmentCount())
	}
}

func TestBotMoveLengthIsCapped(t *testing.T) {
	w := New()
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 1, vec(1, 1))})
	w.Apply(&protocol.BotMove{Items: []protocol.BotMoveItem{
		{BotID: 1, CurrentLength: 1<<32 - 1, CurrentSegmentRadius: 2},
	}})
	if n := len(w.Bot(1).Segments); n != MaxBotSegments {
		t.Fatalf("bot grown to %d segments, want %d", n, MaxBotSegments)
	}
}

func TestSnapshot(t *testing.T) {
	w := New()
	if snap := w.Snapshot(); len(snap) != 1 || snap[0].Type() != protocol.TypeWorldUpdate {
		t.Fatalf("expected lone WORLD_UPDATE before GAME_INFO, got %v", snap)
	}

	w.Apply(&protocol.GameInfo{WorldSizeX: 1000, WorldSizeY: 1000})
	w.Apply(&protocol.BotSpawn{Bot: bot(1, 1, vec(1, 1))})
	w.Apply(&protocol.FoodSpawn{NewFood: []protocol.FoodItem{food(2, 3, 3)}})

	snap := w.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected GAME_INFO and WORLD_UPDATE, got %d messages", len(snap))
	}
	if info := snap[0].(*protocol.GameInfo); info.WorldSizeX != 1000 {
		t.Fatalf("unexpected info %+v", info)
	}
	update := snap[1].(*protocol.WorldUpdate)
	if len(update.Bots) != 1 || update.Bots[0].GUID != 1 || len(update.Food) != 1 || update.Food[0].GUID != 2 {
		t.Fatalf("unexpected update %+v", update)
	}
}
