package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	Uptime          string  `json:"uptime"`
	UptimeSec       int64   `json:"uptimeSec"`
	TotalJoins      int64   `json:"totalJoins"`
	TotalLeaves     int64   `json:"totalLeaves"`
	PeakViewers     int     `json:"peakViewers"`
	CurrentViewers  int     `json:"currentViewers"`
	KeyedViewers    int     `json:"keyedViewers"`
	BotCount        int     `json:"botCount"`
	FoodCount       int     `json:"foodCount"`
	SegmentCount    int     `json:"segmentCount"`
	WorldWidth      float64 `json:"worldWidth"`
	WorldHeight     float64 `json:"worldHeight"`
	FrameID         uint64  `json:"frame"`
	FramesDecoded   uint64  `json:"framesDecoded"`
	FramesDropped   uint64  `json:"framesDropped"`
	PendingLogItems int     `json:"pendingLogItems"`
	UpstreamBytes   int64   `json:"upstreamBytes"`
	TotalBytesSent  int64   `json:"totalBytesSent"`
	TotalBytesRecv  int64   `json:"totalBytesRecv"`
	DroppedUpdates  int64   `json:"droppedUpdates"`
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// buildSnapshot must run on the Run goroutine.
func (r *Relay) buildSnapshot() StatsSnapshot {
	uptime := time.Since(r.startTime)
	w := r.World()
	info, _ := w.Info()
	ds := r.dispatcher.Stats()

	keyed := 0
	for _, v := range r.viewers {
		if v.key != 0 {
			keyed++
		}
	}

	return StatsSnapshot{
		Uptime:          formatDuration(uptime),
		UptimeSec:       int64(uptime.Seconds()),
		TotalJoins:      r.totalJoins,
		TotalLeaves:     r.totalLeaves,
		PeakViewers:     r.peakViewers,
		CurrentViewers:  len(r.viewers),
		KeyedViewers:    keyed,
		BotCount:        len(w.Bots()),
		FoodCount:       w.FoodCount(),
		SegmentCount:    w.SegmentCount(),
		WorldWidth:      info.WorldSizeX,
		WorldHeight:     info.WorldSizeY,
		FrameID:         r.frameID,
		FramesDecoded:   ds.Frames - ds.Dropped,
		FramesDropped:   ds.Dropped,
		PendingLogItems: len(r.dispatcher.PendingLogItems()),
		UpstreamBytes:   r.upstreamBytes,
		TotalBytesSent:  r.totalBytesSent,
		TotalBytesRecv:  atomic.LoadInt64(&r.totalBytesRecv),
		DroppedUpdates:  r.droppedUpdates,
	}
}
