package protocol

// Version is the envelope version written by this relay.
const Version = 1

// MessageType is the envelope tag. The values are fixed by the simulation.
type MessageType uint64

const (
	TypeGameInfo    MessageType = 0x00
	TypeWorldUpdate MessageType = 0x01
	TypeTick        MessageType = 0x10
	TypeBotSpawn    MessageType = 0x20
	TypeBotKill     MessageType = 0x21
	TypeBotMove     MessageType = 0x22
	TypeBotLog      MessageType = 0x23
	TypeFoodSpawn   MessageType = 0x30
	TypeFoodConsume MessageType = 0x31
	TypeFoodDecay   MessageType = 0x32
)

func (t MessageType) String() string {
	switch t {
	case TypeGameInfo:
		return "GAME_INFO"
	case TypeWorldUpdate:
		return "WORLD_UPDATE"
	case TypeTick:
		return "TICK"
	case TypeBotSpawn:
		return "BOT_SPAWN"
	case TypeBotKill:
		return "BOT_KILL"
	case TypeBotMove:
		return "BOT_MOVE"
	case TypeBotLog:
		return "BOT_LOG"
	case TypeFoodSpawn:
		return "FOOD_SPAWN"
	case TypeFoodConsume:
		return "FOOD_CONSUME"
	case TypeFoodDecay:
		return "FOOD_DECAY"
	}
	return "UNKNOWN"
}

// Known reports whether t is one of the enumerated tags.
func (t MessageType) Known() bool {
	return t.String() != "UNKNOWN"
}

// ---------------------------------------------------------------------------
// Shared wire types
// ---------------------------------------------------------------------------

type Vec2 struct {
	_msgpack struct{} `msgpack:",as_array"`
	X, Y     float64
}

// BotItem is a bot as carried by WORLD_UPDATE and BOT_SPAWN.
// Segments are head first.
type BotItem struct {
	_msgpack      struct{} `msgpack:",as_array"`
	GUID          uint64
	Name          string
	SegmentRadius float64
	Segments      []Vec2
}

type FoodItem struct {
	_msgpack struct{} `msgpack:",as_array"`
	GUID     uint64
	Position Vec2
	Value    float64
}

func (f FoodItem) Pos() Vec2 { return f.Position }

type BotMoveItem struct {
	_msgpack             struct{} `msgpack:",as_array"`
	BotID                uint64
	NewSegments          []Vec2
	CurrentLength        uint32
	CurrentSegmentRadius float64
}

type FoodConsumeItem struct {
	_msgpack struct{} `msgpack:",as_array"`
	FoodID   uint64
	BotID    uint64
}

// ---------------------------------------------------------------------------
// Messages
//
// Message is a closed set: only the types below implement it. Every message
// starts with the version and tag fields so it encodes as a full envelope.
// ---------------------------------------------------------------------------

type Message interface {
	Type() MessageType
	isMessage()
}

type Header struct {
	Version uint64
	Tag     MessageType
}

type GameInfo struct {
	_msgpack          struct{} `msgpack:",as_array"`
	Version           uint64
	Tag               MessageType
	WorldSizeX        float64
	WorldSizeY        float64
	FoodDecayPerFrame float64
}

type WorldUpdate struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	Bots     []BotItem
	Food     []FoodItem
}

type Tick struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	FrameID  uint64
}

type BotSpawn struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	Bot      BotItem
}

type BotKill struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	KillerID uint64
	VictimID uint64
}

type BotMove struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	Items    []BotMoveItem
}

// BotLog carries a log line addressed to the viewer holding ViewerKey.
type BotLog struct {
	_msgpack  struct{} `msgpack:",as_array"`
	Version   uint64
	Tag       MessageType
	ViewerKey uint64
	Message   string
}

type FoodSpawn struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	NewFood  []FoodItem
}

type FoodConsume struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	Items    []FoodConsumeItem
}

type FoodDecay struct {
	_msgpack struct{} `msgpack:",as_array"`
	Version  uint64
	Tag      MessageType
	FoodIDs  []uint64
}

func (*GameInfo) Type() MessageType    { return TypeGameInfo }
func (*WorldUpdate) Type() MessageType { return TypeWorldUpdate }
func (*Tick) Type() MessageType        { return TypeTick }
func (*BotSpawn) Type() MessageType    { return TypeBotSpawn }
func (*BotKill) Type() MessageType     { return TypeBotKill }
func (*BotMove) Type() MessageType     { return TypeBotMove }
func (*BotLog) Type() MessageType      { return TypeBotLog }
func (*FoodSpawn) Type() MessageType   { return TypeFoodSpawn }
func (*FoodConsume) Type() MessageType { return TypeFoodConsume }
func (*FoodDecay) Type() MessageType   { return TypeFoodDecay }

func (*GameInfo) isMessage()    {}
func (*WorldUpdate) isMessage() {}
func (*Tick) isMessage()        {}
func (*BotSpawn) isMessage()    {}
func (*BotKill) isMessage()     {}
func (*BotMove) isMessage()     {}
func (*BotLog) isMessage()      {}
func (*FoodSpawn) isMessage()   {}
func (*FoodConsume) isMessage() {}
func (*FoodDecay) isMessage()   {}
