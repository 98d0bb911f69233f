package discovery

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
	"github.com/standardbeagle/callmap/internal/queue"
)

// Trace writes one line per node update and queue status event of e to w.
// Events are mirrored to the engine debug log. Call stop to unsubscribe.
func Trace(e *Engine, w io.Writer) (stop func()) {
	var mu sync.Mutex
	start := time.Now()
	emit := func(format string, args ...interface{}) {
		line := fmt.Sprintf(format, args...)
		debug.LogEngine("%s", line)
		if w == nil {
			return
		}
		mu.Lock()
		fmt.Fprintf(w, "[%8.3fs] %s\n", time.Since(start).Seconds(), line)
		mu.Unlock()
	}

	nodeID := e.AddNodeListener(func(n *calltree.Node) {
		switch n.State() {
		case calltree.Loaded:
			emit("node %s %s callers=%d", n.Signature(), n.State(), n.CallerCount())
		case calltree.Error:
			emit("node %s %s: %s", n.Signature(), n.State(), n.ErrorMessage())
		default:
			emit("node %s %s %.0f%%", n.Signature(), n.State(), n.Progress()*100)
		}
	})
	statusID := e.AddStatusListener(func(s queue.Status) {
		emit("queue %s", s)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.RemoveNodeListener(nodeID)
			e.RemoveStatusListener(statusID)
		})
	}
}
