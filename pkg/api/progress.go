package api

import (
	"io"
	"math"
)

// ProgressFunc receives upload progress as a percentage in [0, 100]. It is
// called from the goroutine sending the request body.
type ProgressFunc func(percent int)

// Percent converts byte counters to a rounded percentage. It returns 0 when
// total is unknown.
func Percent(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(loaded) * 100 / float64(total)))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	last   int
	fn     ProgressFunc
}

// withProgress wraps r so fn observes the bytes read from it. Without a
// callback or a known total r is returned unchanged.
func withProgress(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, last: -1, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if pct := Percent(p.loaded, p.total); pct != p.last {
			p.last = pct
			p.fn(pct)
		}
	}
	return n, err
}
