package persist

import (
	"context"

	"go.uber.org/multierr"
)

// Fanout forwards every call to each recorder and combines their errors.
type Fanout []Recorder

func (f Fanout) each(fn func(Recorder) error) error {
	var err error
	for _, r := range f {
		if r != nil {
			err = multierr.Append(err, fn(r))
		}
	}
	return err
}

func (f Fanout) CreateMatch(ctx context.Context, info MatchInfo) error {
	return f.each(func(r Recorder) error { return r.CreateMatch(ctx, info) })
}

func (f Fanout) RecordMove(ctx context.Context, id string, mv MoveEntry) error {
	return f.each(func(r Recorder) error { return r.RecordMove(ctx, id, mv) })
}

func (f Fanout) RecordChat(ctx context.Context, id string, msg ChatEntry) error {
	return f.each(func(r Recorder) error { return r.RecordChat(ctx, id, msg) })
}

func (f Fanout) EndMatch(ctx context.Context, id string, res Result) error {
	return f.each(func(r Recorder) error { return r.EndMatch(ctx, id, res) })
}

func (f Fanout) AbandonMatch(ctx context.Context, id string) error {
	return f.each(func(r Recorder) error { return r.AbandonMatch(ctx, id) })
}
