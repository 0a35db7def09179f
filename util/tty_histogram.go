package util

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type TtyHistOpts struct {
	Name      string
	Scale     string
	N         int64 // report and reset after N samples; 0 never reports automatically
	MinPct    float64
	Min       int64
	Max       int64
	Precision int
	Writer    io.Writer
}

// Summary is a point-in-time view of the recorded samples.
type Summary struct {
	Count int64
	Min   int64
	Max   int64
	Mean  float64
	P50   int64
	P99   int64
}

// TtyHist records samples into an HDR histogram and periodically prints a text report.
type TtyHist struct {
	opts TtyHistOpts

	hdr  *hdrhistogram.Histogram
	tabw *tabwriter.Writer
	n    int
}

func NewTtyHist(opts TtyHistOpts) *TtyHist {
	h := &TtyHist{
		opts: opts,
		hdr:  hdrhistogram.New(opts.Min, opts.Max, opts.Precision),
	}
	if opts.Writer != nil {
		h.tabw = tabwriter.NewWriter(opts.Writer, 2, 2, 2, byte(' '), 0)
	}
	return h
}

func (h *TtyHist) Add(xs ...int64) {
	for _, x := range xs {
		if x < h.opts.Min {
			x = h.opts.Min
		} else if x > h.opts.Max {
			x = h.opts.Max
		}
		_ = h.hdr.RecordValue(x)
	}
	if h.opts.N > 0 && h.hdr.TotalCount() >= h.opts.N {
		h.Report()
		h.hdr.Reset()
	}
}

// AddDuration records d in the unit named by Scale ("ns", "us" or "ms").
func (h *TtyHist) AddDuration(d time.Duration) {
	switch h.opts.Scale {
	case "ns":
		h.Add(d.Nanoseconds())
	case "ms":
		h.Add(d.Milliseconds())
	default:
		h.Add(d.Microseconds())
	}
}

func (h *TtyHist) Reported() int {
	return h.n
}

func (h *TtyHist) Summary() Summary {
	return Summary{
		Count: h.hdr.TotalCount(),
		Min:   h.hdr.Min(),
		Max:   h.hdr.Max(),
		Mean:  h.hdr.Mean(),
		P50:   h.hdr.ValueAtQuantile(50.0),
		P99:   h.hdr.ValueAtQuantile(99.0),
	}
}

func (h *TtyHist) Reset() {
	h.hdr.Reset()
}

// Report prints the current distribution to the configured writer.
func (h *TtyHist) Report() {
	h.n++
	if h.opts.Writer == nil || h.hdr.TotalCount() == 0 {
		return
	}

	s := h.Summary()
	fmt.Fprintf(h.opts.Writer,
		"%v histogram report=%d name=%s samples=%d scale=%s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		h.n, h.opts.Name, s.Count, h.opts.Scale,
	)
	fmt.Fprintf(h.opts.Writer,
		"summary min/avg/max = %d/%.3f/%d %s p50=%d p99=%d\n",
		s.Min, s.Mean, s.Max, h.opts.Scale, s.P50, s.P99)

	var minBinCount, maxBinCount int64 = math.MaxInt64, math.MinInt64
	for _, bin := range h.hdr.Distribution() {
		pct := float64(bin.Count) * 100.0 / float64(s.Count)
		if pct < h.opts.MinPct || bin.Count == 0 {
			continue
		}
		if bin.Count < minBinCount {
			minBinCount = bin.Count
		}
		if bin.Count > maxBinCount {
			maxBinCount = bin.Count
		}
	}

	for _, bin := range h.hdr.Distribution() {
		pct := float64(bin.Count) * 100.0 / float64(s.Count)
		if pct < h.opts.MinPct || bin.Count == 0 {
			continue
		}

		barSize := 1
		if maxBinCount != minBinCount {
			fraction := float64(bin.Count-minBinCount) / float64(maxBinCount-minBinCount)
			if b := int(math.Ceil(fraction * 10)); b > 0 {
				barSize = b
			}
		}

		to := bin.To
		if bin.From == to {
			to++
		}

		fmt.Fprintf(h.tabw,
			"%d-%d %s\t%.3g%%\t%s\t%s\n",
			bin.From, to, h.opts.Scale, pct,
			strings.Repeat("|", barSize), strconv.FormatInt(bin.Count, 10),
		)
	}
	_ = h.tabw.Flush()
}
