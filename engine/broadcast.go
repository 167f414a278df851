package engine

import (
	"bytes"

	"schlangen.tv/relay/protocol"
)

// ---------------------------------------------------------------------------
// Frame observation + broadcast (called from the Run goroutine only)
//
// A frame update is one binary message holding a msgpack stream of
// envelopes that ends with a TICK. Synced viewers get the envelopes observed
// upstream during the frame, verbatim. Viewers that are new, or that missed
// an update because their send buffer was full, get a snapshot of the whole
// world instead. Log items go out as one BOT_LOG envelope per message.
// ---------------------------------------------------------------------------

// observe keeps the raw envelopes of the current frame for forwarding. Only
// frames that decoded are seen here. BOT_LOG is addressed to single viewers
// and never forwarded wholesale.
func (r *Relay) observe(raw []byte, msg protocol.Message) {
	if msg.Type() == protocol.TypeBotLog {
		return
	}
	r.frame.Write(raw)
}

// frameComplete runs once per TICK. It visits every viewer, then clears the
// pending log items whether or not anyone matched them.
func (r *Relay) frameComplete(frameID uint64) {
	r.frameID = frameID

	forwarded := append([]byte(nil), r.frame.Bytes()...)
	r.frame.Reset()

	var snapshot []byte
	logs := r.dispatcher.PendingLogItems()
	encodedLogs := make([][]byte, len(logs))

	for _, v := range r.viewers {
		update := forwarded
		if !v.synced {
			if snapshot == nil {
				snapshot = r.encodeSnapshot(frameID)
			}
			update = snapshot
		}

		if r.deliver(v, update) {
			v.synced = true
		} else {
			// Resend the whole world once the viewer catches up.
			v.synced = false
			r.droppedUpdates++
		}

		if v.key == 0 {
			continue
		}
		for i, item := range logs {
			if item.ViewerKey != v.key {
				continue
			}
			if encodedLogs[i] == nil {
				encodedLogs[i] = r.encodeLog(item.ViewerKey, item.Message)
			}
			if !r.deliver(v, encodedLogs[i]) {
				r.droppedUpdates++
			}
		}
	}

	r.dispatcher.ClearLogItems()
}

func (r *Relay) deliver(v *Viewer, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	select {
	case v.sendCh <- data:
		r.totalBytesSent += int64(len(data))
		return true
	default:
		return false
	}
}

func (r *Relay) encodeSnapshot(frameID uint64) []byte {
	var buf bytes.Buffer
	msgs := append(r.World().Snapshot(), &protocol.Tick{FrameID: frameID})
	for _, msg := range msgs {
		if err := protocol.EncodeTo(&buf, msg); err != nil {
			r.logger.Printf("[RELAY] snapshot for frame %d: %v", frameID, err)
			return nil
		}
	}
	return buf.Bytes()
}

func (r *Relay) encodeLog(key uint64, message string) []byte {
	data, err := protocol.Encode(&protocol.BotLog{ViewerKey: key, Message: message})
	if err != nil {
		r.logger.Printf("[RELAY] log for viewer key %d: %v", key, err)
		return nil
	}
	return data
}
