package uvlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Params is a command's parameter dictionary. Keys follow the application's
// dotted naming, e.g. "File.Path", "Data.CoordsXYZ" or "__Focus".
type Params map[string]interface{}

// Command names understood by the application.
const (
	CmdVersion  = "Version"
	CmdLoad     = "Load"
	CmdUnfold   = "Unfold"
	CmdOptimize = "Optimize"
	CmdPack     = "Pack"
	CmdSave     = "Save"
	CmdSelect   = "Select"
	CmdCut      = "Cut"
	CmdWeld     = "Weld"
	CmdQuit     = "Quit"
)

// RizomUVVersion queries the connected application for its version.
func (l *Link) RizomUVVersion(ctx context.Context) (string, error) {
	var v string
	if err := l.ExecuteInto(ctx, CmdVersion, nil, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Load loads a mesh, either from a file ("File.Path" with "File.XYZ" or
// "File.XYZUVW") or from arrays (see Mesh.LoadParams).
func (l *Link) Load(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdLoad, params, nil)
}

// LoadMesh validates m and loads it without going through a file.
func (l *Link) LoadMesh(ctx context.Context, m *Mesh, extra Params) error {
	if err := m.Validate(); err != nil {
		return err
	}
	params := m.LoadParams()
	for k, v := range extra {
		params[k] = v
	}
	return l.Load(ctx, params)
}

// Unfold unwraps the selection, or the whole mesh with empty params.
func (l *Link) Unfold(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdUnfold, params, nil)
}

// Optimize relaxes existing UV islands without re-cutting them.
func (l *Link) Optimize(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdOptimize, params, nil)
}

// Pack lays the UV islands out in the unit tile, e.g. Params{"Translate": true}.
func (l *Link) Pack(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdPack, params, nil)
}

// Select changes the application's current selection.
func (l *Link) Select(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdSelect, params, nil)
}

// Cut cuts the selected edges into seams.
func (l *Link) Cut(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdCut, params, nil)
}

// Weld welds the selected seams.
func (l *Link) Weld(ctx context.Context, params Params) error {
	return l.ExecuteInto(ctx, CmdWeld, params, nil)
}

// Save writes the mesh to "File.Path" and/or, with "Data": true, returns
// the geometry arrays under the "Data" key of the result.
func (l *Link) Save(ctx context.Context, params Params) (map[string]interface{}, error) {
	return l.Execute(ctx, CmdSave, params)
}

// SaveMesh asks for the geometry arrays and decodes them into a Mesh.
func (l *Link) SaveMesh(ctx context.Context) (*Mesh, error) {
	var out saveResult
	if err := l.ExecuteInto(ctx, CmdSave, Params{"Data": true}, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, errors.New("uvlink: Save answered without Data")
	}
	return out.Data, nil
}

type saveResult struct {
	Data *Mesh `msgpack:"Data"`
}

// Quit asks the application to exit, then closes the link. When the link
// launched the application, Quit waits for it to exit and kills it after
// the grace period. The link cannot be reused afterwards.
func (l *Link) Quit(ctx context.Context, params Params) error {
	err := l.ExecuteInto(ctx, CmdQuit, params, nil)
	// the application may drop the connection before answering
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	if err != nil && !errors.Is(err, ErrNotConnected) {
		l.logger.Warn("quit request failed", zap.Error(err))
	}

	l.mu.Lock()
	proc := l.proc
	l.mu.Unlock()
	if proc != nil {
		waitCtx, cancel := context.WithTimeout(ctx, l.opts.gracePeriod)
		werr := proc.WaitContext(waitCtx)
		cancel()
		if werr != nil && waitCtx.Err() != nil {
			l.logger.Warn("application still running after quit", zap.Duration("grace", l.opts.gracePeriod))
		}
	}

	if cerr := l.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("uvlink: stopping application: %w", cerr)
	}
	return err
}

// QuitTimeout is Quit with its own deadline, for deferred cleanup.
func (l *Link) QuitTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return l.Quit(ctx, nil)
}
