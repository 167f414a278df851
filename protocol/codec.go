package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotEnvelope is returned for payloads that are not an array of at
	// least two fields.
	ErrNotEnvelope = errors.New("protocol: payload is not an envelope")
	// ErrUnknownType is returned for envelopes with an unrecognized tag.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// PeekHeader decodes only the version and tag of an envelope.
func PeekHeader(payload []byte) (Header, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))

	n, err := dec.DecodeArrayLen()
	if err != nil || n < 2 {
		return Header{}, ErrNotEnvelope
	}
	var version looseVersion
	if err := version.DecodeMsgpack(dec); err != nil {
		return Header{}, ErrNotEnvelope
	}
	tag, err := dec.DecodeUint64()
	if err != nil {
		return Header{}, ErrNotEnvelope
	}
	return Header{Version: uint64(version), Tag: MessageType(tag)}, nil
}

// Decode checks the envelope shape and decodes the message it carries.
func Decode(payload []byte) (Message, error) {
	h, err := PeekHeader(payload)
	if err != nil {
		return nil, err
	}
	if !h.Tag.Known() {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownType, uint64(h.Tag))
	}

	var msg Message
	switch h.Tag {
	case TypeGameInfo:
		msg = &GameInfo{}
	case TypeWorldUpdate:
		msg = &WorldUpdate{}
	case TypeTick:
		msg = &Tick{}
	case TypeBotSpawn:
		msg = &BotSpawn{}
	case TypeBotKill:
		msg = &BotKill{}
	case TypeBotMove:
		msg = &BotMove{}
	case TypeBotLog:
		msg = &BotLog{}
	case TypeFoodSpawn:
		msg = &FoodSpawn{}
	case TypeFoodConsume:
		msg = &FoodConsume{}
	case TypeFoodDecay:
		msg = &FoodDecay{}
	}

	if err := msgpack.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", h.Tag, err)
	}
	return msg, nil
}

// Encode serializes msg as an envelope, stamping the current version and the
// message's own tag.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo appends the envelope for msg to buf. Several envelopes written to
// the same buffer form a msgpack stream.
func EncodeTo(buf *bytes.Buffer, msg Message) error {
	stamp(msg)
	if err := msgpack.NewEncoder(buf).Encode(msg); err != nil {
		return fmt.Errorf("protocol: encode %s: %w", msg.Type(), err)
	}
	return nil
}

func stamp(msg Message) {
	switch m := msg.(type) {
	case *GameInfo:
		m.Version, m.Tag = Version, TypeGameInfo
	case *WorldUpdate:
		m.Version, m.Tag = Version, TypeWorldUpdate
	case *Tick:
		m.Version, m.Tag = Version, TypeTick
	case *BotSpawn:
		m.Version, m.Tag = Version, TypeBotSpawn
	case *BotKill:
		m.Version, m.Tag = Version, TypeBotKill
	case *BotMove:
		m.Version, m.Tag = Version, TypeBotMove
	case *BotLog:
		m.Version, m.Tag = Version, TypeBotLog
	case *FoodSpawn:
		m.Version, m.Tag = Version, TypeFoodSpawn
	case *FoodConsume:
		m.Version, m.Tag = Version, TypeFoodConsume
	case *FoodDecay:
		m.Version, m.Tag = Version, TypeFoodDecay
	}
}

// DecodeStream decodes consecutive envelopes from a msgpack stream, as sent to
// viewers in a single frame update.
func DecodeStream(data []byte) ([]Message, error) {
	var out []Message
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	for {
		var raw msgpack.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		msg, err := Decode(raw)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}
