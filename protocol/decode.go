package protocol

import "github.com/vmihailenco/msgpack/v5"

// decodeArray decodes an array-encoded value into fields, in order. Missing
// trailing elements leave their fields untouched and extra elements are
// skipped, so older and newer simulations interoperate.
func decodeArray(dec *msgpack.Decoder, fields ...any) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if i >= len(fields) {
			if err := dec.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := dec.Decode(fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// looseVersion accepts any value in the version slot. Only its presence is
// required; non-negative integers are kept, anything else reads as 0.
type looseVersion uint64

func (l *looseVersion) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case uint64:
		*l = looseVersion(x)
	case int64:
		if x >= 0 {
			*l = looseVersion(x)
		} else {
			*l = 0
		}
	default:
		*l = 0
	}
	return nil
}

func (v *Vec2) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, &v.X, &v.Y)
}

func (b *BotItem) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, &b.GUID, &b.Name, &b.SegmentRadius, &b.Segments)
}

func (f *FoodItem) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, &f.GUID, &f.Position, &f.Value)
}

func (m *BotMoveItem) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, &m.BotID, &m.NewSegments, &m.CurrentLength, &m.CurrentSegmentRadius)
}

func (c *FoodConsumeItem) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, &c.FoodID, &c.BotID)
}

func (m *GameInfo) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.WorldSizeX, &m.WorldSizeY, &m.FoodDecayPerFrame)
}

func (m *WorldUpdate) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.Bots, &m.Food)
}

func (m *Tick) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.FrameID)
}

func (m *BotSpawn) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.Bot)
}

func (m *BotKill) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.KillerID, &m.VictimID)
}

func (m *BotMove) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.Items)
}

func (m *BotLog) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.ViewerKey, &m.Message)
}

func (m *FoodSpawn) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.NewFood)
}

func (m *FoodConsume) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.Items)
}

func (m *FoodDecay) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeArray(dec, (*looseVersion)(&m.Version), &m.Tag, &m.FoodIDs)
}
