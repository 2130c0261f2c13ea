package fastmixer

import (
	"fmt"
	"math/bits"
	"strings"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
)

type TrackDump struct {
	Underruns  atomic.Uint32
	FramesRead atomic.Uint64
	ReadErrors atomic.Uint32
}

// DumpState extends the common fast thread counters with the mixer's own.
type DumpState struct {
	fastthread.DumpState

	WriteSequence atomic.Uint64
	FramesWritten atomic.Uint64
	WriteErrors   atomic.Uint32
	NumTracks     atomic.Uint32
	TrackMask     atomic.Uint32

	Tracks [MaxTracks]TrackDump
}

type TrackSnapshot struct {
	Slot       int
	Underruns  uint32
	FramesRead uint64
	ReadErrors uint32
}

type DumpSnapshot struct {
	fastthread.DumpSnapshot

	WriteSequence uint64
	FramesWritten uint64
	WriteErrors   uint32
	NumTracks     uint32
	TrackMask     uint32

	// Only the tracks in TrackMask.
	Tracks []TrackSnapshot
}

func (d *DumpState) Snapshot() DumpSnapshot {
	s := DumpSnapshot{
		DumpSnapshot:  d.DumpState.Snapshot(),
		WriteSequence: d.WriteSequence.Load(),
		FramesWritten: d.FramesWritten.Load(),
		WriteErrors:   d.WriteErrors.Load(),
		NumTracks:     d.NumTracks.Load(),
		TrackMask:     d.TrackMask.Load(),
	}
	for mask := s.TrackMask; mask != 0; mask &= mask - 1 {
		i := bits.TrailingZeros32(mask)
		t := &d.Tracks[i]
		s.Tracks = append(s.Tracks, TrackSnapshot{
			Slot:       i,
			Underruns:  t.Underruns.Load(),
			FramesRead: t.FramesRead.Load(),
			ReadErrors: t.ReadErrors.Load(),
		})
	}
	return s
}

func (s DumpSnapshot) String() string {
	var sb strings.Builder

	sb.WriteString(s.DumpSnapshot.String())
	fmt.Fprintf(&sb, "Writes:          %d (%d frames, %d errors)\n", s.WriteSequence, s.FramesWritten, s.WriteErrors)
	fmt.Fprintf(&sb, "Tracks:          %d (mask %#08x)\n", s.NumTracks, s.TrackMask)
	for _, t := range s.Tracks {
		fmt.Fprintf(&sb, "  [%2d] read %d frames, %d underruns, %d errors\n", t.Slot, t.FramesRead, t.Underruns, t.ReadErrors)
	}
	return sb.String()
}
