package pipeline

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress draws one bar per pipeline stage. A nil Progress draws nothing.
type Progress struct {
	p    *mpb.Progress
	bars []*mpb.Bar
}

// NewProgress renders bars to w; a nil writer disables them
func NewProgress(w io.Writer) *Progress {
	if w == nil {
		return nil
	}
	return &Progress{p: mpb.New(mpb.WithWidth(40), mpb.WithOutput(w))}
}

// Stage adds a bar of total steps and returns its increment callback
func (pr *Progress) Stage(name string, total int) func() {
	if pr == nil || total <= 0 {
		return nil
	}
	label := name + ": "
	bar := pr.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(label, decor.WC{W: len(label), C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	pr.bars = append(pr.bars, bar)
	return func() { bar.Increment() }
}

// Close stops bars left incomplete by a failed stage and waits for rendering to end
func (pr *Progress) Close() {
	if pr == nil {
		return
	}
	for _, bar := range pr.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	pr.p.Wait()
}
