package fastcapture

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
)

type DumpState struct {
	fastthread.DumpState

	ReadSequence  atomic.Uint64
	FramesRead    atomic.Uint64
	ReadErrors    atomic.Uint32
	WriteErrors   atomic.Uint32
	FramesWritten atomic.Uint64
	Silenced      atomic.Bool
}

type DumpSnapshot struct {
	fastthread.DumpSnapshot

	ReadSequence  uint64
	FramesRead    uint64
	ReadErrors    uint32
	WriteErrors   uint32
	FramesWritten uint64
	Silenced      bool
}

func (d *DumpState) Snapshot() DumpSnapshot {
	return DumpSnapshot{
		DumpSnapshot:  d.DumpState.Snapshot(),
		ReadSequence:  d.ReadSequence.Load(),
		FramesRead:    d.FramesRead.Load(),
		ReadErrors:    d.ReadErrors.Load(),
		WriteErrors:   d.WriteErrors.Load(),
		FramesWritten: d.FramesWritten.Load(),
		Silenced:      d.Silenced.Load(),
	}
}

func (s DumpSnapshot) String() string {
	var sb strings.Builder

	sb.WriteString(s.DumpSnapshot.String())
	fmt.Fprintf(&sb, "Reads:           %d (%d frames, %d errors)\n", s.ReadSequence, s.FramesRead, s.ReadErrors)
	fmt.Fprintf(&sb, "Written:         %d frames, %d errors\n", s.FramesWritten, s.WriteErrors)
	fmt.Fprintf(&sb, "Silenced:        %t\n", s.Silenced)
	return sb.String()
}
