package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
	cmerrors "github.com/standardbeagle/callmap/internal/errors"
	"github.com/standardbeagle/callmap/internal/queue"
)

// Progress checkpoints reported by findCallers
const (
	progressStarted    = 0.1
	progressReferences = 0.3
	progressResolveEnd = 0.9
)

// findCallers is the queue runner: find references to the task's method and
// map each to its containing declaration. Per-reference failures are logged
// and skipped. The result keeps the first node seen for each method.
func (e *Engine) findCallers(ctx context.Context, task *queue.Task, progress func(float64)) ([]*calltree.Node, error) {
	target := task.Node.Symbol()
	progress(progressStarted)

	refs, err := e.resolver.FindReferences(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("find references to %s: %w", target.Signature(), err)
	}
	progress(progressReferences)
	debug.LogEngine("%s: %d references", task.Node.ID(), len(refs))

	seen := make(map[calltree.MethodID]struct{}, len(refs))
	callers := make([]*calltree.Node, 0, len(refs))

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decl, ok, err := e.resolver.ContainingDeclaration(ctx, ref)
		switch {
		case err != nil:
			debug.LogEngine("skip %s: %v", ref, cmerrors.NewResolutionError("resolve containing declaration", err).WithMethod(string(task.Node.ID())))
		case !ok:
			debug.LogEngine("skip %s: not inside a declaration", ref)
		case decl.Same(target):
			// self reference
		default:
			id := calltree.IDOf(decl)
			if _, dup := seen[id]; dup {
				break
			}
			n, err := e.newNode(decl)
			if err != nil {
				debug.LogEngine("skip %s: %v", ref, err)
				break
			}
			seen[id] = struct{}{}
			callers = append(callers, e.registry.Intern(n))
		}

		processed := i + 1
		progress(progressReferences + (progressResolveEnd-progressReferences)*float64(processed)/float64(len(refs)))

		if processed%e.opts.YieldEvery == 0 && processed < len(refs) {
			if err := pause(ctx, e.opts.YieldPause); err != nil {
				return nil, err
			}
		}
	}

	progress(1)
	return callers, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
