package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

type ratio struct{ keep, of uint64 }

// sampler passes keep out of every "of" events; unset, it passes everything.
type sampler struct {
	cfg atomic.Pointer[ratio]
	n   atomic.Uint64
}

func (s *sampler) set(keep, of int) {
	s.n.Store(0)
	if keep <= 0 || of <= 0 {
		s.cfg.Store(nil)
		return
	}
	s.cfg.Store(&ratio{keep: uint64(min(keep, of)), of: uint64(of)})
}

func (s *sampler) allow() bool {
	r := s.cfg.Load()
	if r == nil {
		return true
	}
	return (s.n.Add(1)-1)%r.of < r.keep
}

// parseRatio reads "keep/of" or a bare "of" meaning 1/of.
func parseRatio(raw string) (keep, of int, ok bool) {
	raw = strings.TrimSpace(raw)
	keepStr, ofStr, found := strings.Cut(raw, "/")
	if !found {
		keepStr, ofStr = "1", raw
	}
	keep, err1 := strconv.Atoi(strings.TrimSpace(keepStr))
	of, err2 := strconv.Atoi(strings.TrimSpace(ofStr))
	if err1 != nil || err2 != nil || keep <= 0 || of <= 0 {
		return 0, 0, false
	}
	return keep, of, true
}
