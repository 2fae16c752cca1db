package executor

import (
	"context"
	"fmt"
	"time"

	"TaskAgent/backend/go/internal/capability"
	"TaskAgent/backend/go/internal/capability/uitree"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/task"

	"github.com/gobwas/glob"
)

func (e *Executor) dispatch(ctx context.Context, t *task.ValidatedTask) (map[string]models.Value, error) {
	switch args := t.Args.(type) {
	case task.ClickTextArgs:
		return e.clickText(ctx, args.Text)
	case task.ClickIDArgs:
		return e.clickID(ctx, args.ViewID)
	case task.SetTextArgs:
		return e.setText(ctx, args)
	case task.ScrollArgs:
		return e.scroll(ctx, args.Direction)
	case task.GlobalActionArgs:
		return e.global(ctx, args.Action)
	case task.TapArgs:
		return e.tap(ctx, args)
	case task.WaitArgs:
		return e.wait(args.Requested), nil
	case task.OpenAppArgs:
		return e.openApp(ctx, args.Package)
	case task.PathArgs:
		return e.file(ctx, args)
	case task.RawArgs:
		return nil, capability.Fail("unhandled_raw_command", fmt.Errorf("no handler for %q", args.Text))
	default:
		return nil, capability.Fail("unknown_kind", fmt.Errorf("%T", t.Args))
	}
}

// bounded runs fn under the adapter timeout.
func (e *Executor) bounded(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.AdapterTimeout)
	defer cancel()
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *Executor) snapshot(ctx context.Context) (*uitree.Node, error) {
	if e.caps.UI == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	var root *uitree.Node
	err := e.bounded(ctx, func(ctx context.Context) error {
		var err error
		root, err = e.caps.UI.Snapshot(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, capability.Fail("no_active_window", nil)
	}
	return root, nil
}

func (e *Executor) perform(ctx context.Context, node *uitree.Node, action capability.NodeAction) error {
	return e.bounded(ctx, func(ctx context.Context) error {
		return e.caps.UI.Perform(ctx, node, action)
	})
}

// clickTarget finds the node a click on text lands on: an exact text match
// first, then a content description containing text.
func clickTarget(root *uitree.Node, text string) *uitree.Node {
	for _, n := range uitree.FindByText(root, text) {
		if target := uitree.ClickableAncestor(n); target != nil {
			return target
		}
	}
	if n := uitree.FindByDescription(root, text); n != nil {
		return uitree.ClickableAncestor(n)
	}
	return nil
}

func (e *Executor) clickText(ctx context.Context, text string) (map[string]models.Value, error) {
	root, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	target := clickTarget(root, text)
	if target == nil {
		return nil, capability.Fail("element_not_found", fmt.Errorf("no clickable node for %q", text))
	}
	if err := e.perform(ctx, target, capability.Click); err != nil {
		return nil, err
	}
	return map[string]models.Value{"clicked": models.String(target.Label())}, nil
}

func (e *Executor) clickID(ctx context.Context, id string) (map[string]models.Value, error) {
	root, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	matchedBy := "view_id"
	var target *uitree.Node
	for _, n := range uitree.FindByViewID(root, id) {
		if target = uitree.ClickableAncestor(n); target != nil {
			break
		}
	}
	if target == nil {
		matchedBy = "text"
		target = clickTarget(root, uitree.LastSegment(id))
	}
	if target == nil {
		return nil, capability.Fail("element_not_found", fmt.Errorf("no clickable node for id %q", id))
	}
	if err := e.perform(ctx, target, capability.Click); err != nil {
		return nil, err
	}
	return map[string]models.Value{
		"clicked":    models.String(target.Label()),
		"matched_by": models.String(matchedBy),
	}, nil
}

func (e *Executor) setText(ctx context.Context, args task.SetTextArgs) (map[string]models.Value, error) {
	root, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var field *uitree.Node
	if args.Target != "" {
		field = uitree.First(root, func(n *uitree.Node) bool {
			return n.Editable && (n.Text == args.Target || n.ViewID == args.Target || n.Description == args.Target)
		})
	} else {
		field = uitree.First(root, func(n *uitree.Node) bool { return n.Editable && n.Focused })
		if field == nil {
			field = uitree.First(root, func(n *uitree.Node) bool { return n.Editable })
		}
	}
	if field == nil {
		return nil, capability.Fail("no_editable_field", nil)
	}
	if err := e.perform(ctx, field, capability.SetText(args.Text)); err != nil {
		return nil, err
	}
	return map[string]models.Value{"text": models.String(args.Text)}, nil
}

func (e *Executor) scroll(ctx context.Context, direction string) (map[string]models.Value, error) {
	root, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node := uitree.First(root, func(n *uitree.Node) bool { return n.Scrollable })
	if node == nil {
		return nil, capability.Fail("no_scrollable_node", nil)
	}
	if err := e.perform(ctx, node, capability.Scroll(direction)); err != nil {
		return nil, err
	}
	return map[string]models.Value{"direction": models.String(direction)}, nil
}

func (e *Executor) global(ctx context.Context, action string) (map[string]models.Value, error) {
	if e.caps.UI == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	err := e.bounded(ctx, func(ctx context.Context) error { return e.caps.UI.Global(ctx, action) })
	if err != nil {
		return nil, err
	}
	return map[string]models.Value{"action": models.String(action)}, nil
}

func (e *Executor) tap(ctx context.Context, args task.TapArgs) (map[string]models.Value, error) {
	if e.caps.Gestures == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	err := e.bounded(ctx, func(ctx context.Context) error { return e.caps.Gestures.Tap(ctx, args.X, args.Y) })
	if err != nil {
		return nil, err
	}
	return map[string]models.Value{"x": models.Number(args.X), "y": models.Number(args.Y)}, nil
}

// wait blocks the worker, so nothing else runs until it returns.
func (e *Executor) wait(requested time.Duration) map[string]models.Value {
	d := task.ClampWait(requested, e.opts.MaxWait)
	e.opts.Clock.Sleep(d)
	return map[string]models.Value{"waited_ms": models.Number(float64(d.Milliseconds()))}
}

func (e *Executor) openApp(ctx context.Context, pkg string) (map[string]models.Value, error) {
	if e.caps.Apps == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	err := e.bounded(ctx, func(ctx context.Context) error { return e.caps.Apps.Launch(ctx, pkg) })
	if err != nil {
		return nil, err
	}
	return map[string]models.Value{"package": models.String(pkg)}, nil
}

// file confines the path to the storage root before any adapter call.
func (e *Executor) file(ctx context.Context, args task.PathArgs) (map[string]models.Value, error) {
	if e.caps.Sandbox == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	resolve := e.caps.Sandbox.Resolve
	if args.Op == task.KindDeleteFile {
		// delete acts on the entry, a symlink is removed and its target kept
		resolve = e.caps.Sandbox.ResolveEntry
	}
	host, logical, err := resolve(args.Path)
	if err != nil {
		return nil, err
	}
	if e.caps.Files == nil {
		return nil, capability.ErrUnsupportedPlatform
	}
	data := map[string]models.Value{"path": models.String(logical)}
	switch args.Op {
	case task.KindListFiles:
		var entries []capability.FileEntry
		err = e.bounded(ctx, func(ctx context.Context) error {
			entries, err = e.caps.Files.List(ctx, host)
			return err
		})
		if err != nil {
			return nil, err
		}
		var match glob.Glob
		if args.Pattern != "" {
			if match, err = glob.Compile(args.Pattern); err != nil {
				return nil, capability.Fail("bad_pattern", err)
			}
			data["pattern"] = models.String(args.Pattern)
		}
		items := make([]models.Value, 0, len(entries))
		for _, fe := range entries {
			if match != nil && !match.Match(fe.Name) {
				continue
			}
			items = append(items, models.Map(entryData(fe)))
		}
		data["entries"] = models.List(items...)
		data["count"] = models.Number(float64(len(items)))
	case task.KindDeleteFile:
		err = e.bounded(ctx, func(ctx context.Context) error { return e.caps.Files.Delete(ctx, host) })
		if err != nil {
			return nil, err
		}
		data["deleted"] = models.Bool(true)
	case task.KindFileInfo:
		var fe capability.FileEntry
		err = e.bounded(ctx, func(ctx context.Context) error {
			fe, err = e.caps.Files.Stat(ctx, host)
			return err
		})
		if err != nil {
			return nil, err
		}
		for k, v := range entryData(fe) {
			data[k] = v
		}
	default:
		return nil, capability.Fail("unknown_file_op", fmt.Errorf("%s", args.Op))
	}
	return data, nil
}

func entryData(fe capability.FileEntry) map[string]models.Value {
	out := map[string]models.Value{
		"name":      models.String(fe.Name),
		"dir":       models.Bool(fe.Dir),
		"size":      models.Number(float64(fe.Size)),
		"mime_type": models.String(fe.MimeType),
		"modified":  models.String(fe.Modified.UTC().Format(time.RFC3339)),
	}
	if !fe.Accessed.IsZero() {
		out["accessed"] = models.String(fe.Accessed.UTC().Format(time.RFC3339))
	}
	// 部分文件系统不提供创建时间
	if !fe.Created.IsZero() {
		out["created"] = models.String(fe.Created.UTC().Format(time.RFC3339))
	}
	return out
}
