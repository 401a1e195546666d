package trace

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
)

const (
	// UtilWeight is the share of the performance index given to utilization;
	// the rest goes to throughput.
	UtilWeight = 0.60

	// ReferenceThroughput is the request rate (per second) that earns the
	// full throughput share of the index.
	ReferenceThroughput = 600e3
)

var (
	ErrMisaligned     = errors.New("trace: payload not 8-byte aligned")
	ErrOutOfHeap      = errors.New("trace: payload outside the heap")
	ErrOverlap        = errors.New("trace: payload overlaps a live block")
	ErrPayloadChanged = errors.New("trace: payload bytes changed")
	ErrBadID          = errors.New("trace: request does not match block state")
)

// Options configures Replay. A nil *Options uses the defaults.
type Options struct {
	// CheckHeap runs the allocator's integrity checker after every request.
	CheckHeap bool

	// Timing adds an unvalidated second pass, on a reset heap, whose wall
	// time gives Result.Throughput.
	Timing bool

	Logger *slog.Logger
}

// Result summarizes one replay.
type Result struct {
	Name        string
	Weight      int
	Ops         int
	PeakPayload int64   // Largest total of requested bytes live at once
	HeapSize    int     // Arena bytes in use after the validated pass
	Utilization float64 // PeakPayload / HeapSize
	Elapsed     time.Duration
	Throughput  float64 // Requests per second in the timing pass (0 if not timed)
	Stats       alloc.Stats
}

// ReplayError identifies the request that failed.
type ReplayError struct {
	Trace string
	Index int
	Op    Op
	Err   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("trace %s: request %d (line %d, %s id %d size %d): %v",
		e.Trace, e.Index, e.Op.Line, e.Op.Kind, e.Op.ID, e.Op.Size, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

type block struct {
	p    alloc.Ptr
	size uint32
	live bool
}

type span struct {
	lo, hi int // [lo, hi)
}

// replayer holds per-replay validation state.
type replayer struct {
	a      *alloc.Allocator
	blocks []block
	spans  []span // Live payload ranges sorted by lo
	total  int64
	peak   int64
}

// Replay runs every request of tr against a, which must be freshly
// initialized or empty. Each result is checked for alignment, bounds and
// overlap, and every payload is filled with a per-id pattern that is verified
// on resize and free.
func Replay(a *alloc.Allocator, tr *Trace, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := a.Init(); err != nil {
		return nil, err
	}

	rp := &replayer{a: a, blocks: make([]block, tr.NumIDs)}
	for i, op := range tr.Ops {
		if err := rp.apply(op); err != nil {
			log.Warn("replay failed", "trace", tr.Name, "index", i, "line", op.Line, "err", err)
			return nil, &ReplayError{Trace: tr.Name, Index: i, Op: op, Err: err}
		}
		if opts.CheckHeap {
			if r := a.CheckHeap(fmt.Sprintf("%s#%d", tr.Name, i)); !r.OK() {
				return nil, &ReplayError{Trace: tr.Name, Index: i, Op: op, Err: r.Err()}
			}
		}
	}

	res := &Result{
		Name:        tr.Name,
		Weight:      tr.Weight,
		Ops:         len(tr.Ops),
		PeakPayload: rp.peak,
		HeapSize:    a.HeapSize(),
		Stats:       a.Stats(),
	}
	if res.HeapSize > 0 {
		res.Utilization = float64(rp.peak) / float64(res.HeapSize)
	}

	if opts.Timing {
		elapsed, err := timeReplay(a, tr)
		if err != nil {
			return nil, err
		}
		res.Elapsed = elapsed
		if elapsed > 0 {
			res.Throughput = float64(len(tr.Ops)) / elapsed.Seconds()
		}
	}

	log.Debug("trace replayed",
		"trace", tr.Name,
		"ops", res.Ops,
		"util", res.Utilization,
		"heap", res.HeapSize,
		"elapsed", res.Elapsed)
	return res, nil
}

// timeReplay resets the heap and replays tr without validation.
func timeReplay(a *alloc.Allocator, tr *Trace) (time.Duration, error) {
	if err := a.Reset(); err != nil {
		return 0, err
	}
	ptrs := make([]alloc.Ptr, tr.NumIDs)

	start := time.Now()
	for i, op := range tr.Ops {
		var err error
		switch op.Kind {
		case OpAlloc:
			ptrs[op.ID], _, err = a.Alloc(op.Size)
		case OpRealloc:
			ptrs[op.ID], _, err = a.Realloc(ptrs[op.ID], op.Size)
		case OpFree:
			err = a.Free(ptrs[op.ID])
			ptrs[op.ID] = alloc.Nil
		}
		if err != nil {
			return 0, &ReplayError{Trace: tr.Name, Index: i, Op: op, Err: err}
		}
	}
	return time.Since(start), nil
}

func (rp *replayer) apply(op Op) error {
	b := &rp.blocks[op.ID]

	switch op.Kind {
	case OpAlloc:
		if b.live {
			return fmt.Errorf("%w: id %d is already allocated", ErrBadID, op.ID)
		}
		p, buf, err := rp.a.Alloc(op.Size)
		if err != nil {
			return err
		}
		if err := rp.admit(p, op.Size); err != nil {
			return err
		}
		fillPattern(buf, op.ID)
		*b = block{p: p, size: op.Size, live: true}
		rp.account(int64(op.Size))

	case OpRealloc:
		var oldSize uint32
		if b.live {
			if err := rp.verify(b, op.ID); err != nil {
				return err
			}
			rp.release(b)
			oldSize = b.size
		}
		p, buf, err := rp.a.Realloc(b.p, op.Size)
		if err != nil {
			if b.live {
				rp.restore(b)
			}
			return err
		}
		if !checkPattern(buf[:min(oldSize, op.Size)], op.ID) {
			return fmt.Errorf("%w: realloc of id %d lost its contents", ErrPayloadChanged, op.ID)
		}
		if err := rp.admit(p, op.Size); err != nil {
			return err
		}
		fillPattern(buf, op.ID)
		rp.account(int64(op.Size) - int64(oldSize))
		*b = block{p: p, size: op.Size, live: op.Size > 0}

	case OpFree:
		if !b.live {
			return fmt.Errorf("%w: id %d is not allocated", ErrBadID, op.ID)
		}
		if err := rp.verify(b, op.ID); err != nil {
			return err
		}
		if err := rp.a.Free(b.p); err != nil {
			return err
		}
		rp.release(b)
		rp.account(-int64(b.size))
		*b = block{}
	}
	return nil
}

func (rp *replayer) account(delta int64) {
	rp.total += delta
	rp.peak = max(rp.peak, rp.total)
}

// admit validates a freshly returned payload and records its range.
func (rp *replayer) admit(p alloc.Ptr, size uint32) error {
	if p == alloc.Nil {
		if size != 0 {
			return fmt.Errorf("%w: nil pointer for %d bytes", ErrOutOfHeap, size)
		}
		return nil
	}
	if !format.IsAligned8(p) {
		return fmt.Errorf("%w: %#x", ErrMisaligned, uint32(p))
	}
	s := span{lo: int(p), hi: int(p) + int(size)}
	if s.lo < format.FirstPayload || s.hi > rp.a.HeapSize() {
		return fmt.Errorf("%w: [%#x, %#x) with heap of %d bytes", ErrOutOfHeap, s.lo, s.hi, rp.a.HeapSize())
	}
	return rp.insertSpan(s)
}

func (rp *replayer) insertSpan(s span) error {
	if s.hi == s.lo {
		return nil
	}
	i, _ := slices.BinarySearchFunc(rp.spans, s, func(x, t span) int { return cmp.Compare(x.lo, t.lo) })
	if i > 0 && rp.spans[i-1].hi > s.lo {
		return fmt.Errorf("%w: [%#x, %#x) and [%#x, %#x)", ErrOverlap, s.lo, s.hi, rp.spans[i-1].lo, rp.spans[i-1].hi)
	}
	if i < len(rp.spans) && rp.spans[i].lo < s.hi {
		return fmt.Errorf("%w: [%#x, %#x) and [%#x, %#x)", ErrOverlap, s.lo, s.hi, rp.spans[i].lo, rp.spans[i].hi)
	}
	rp.spans = slices.Insert(rp.spans, i, s)
	return nil
}

// release drops b's range from the overlap index.
func (rp *replayer) release(b *block) {
	if b.p == alloc.Nil || b.size == 0 {
		return
	}
	i, found := slices.BinarySearchFunc(rp.spans, int(b.p), func(x span, lo int) int { return cmp.Compare(x.lo, lo) })
	if found {
		rp.spans = slices.Delete(rp.spans, i, i+1)
	}
}

// restore re-adds b's range after a failed realloc left it in place.
func (rp *replayer) restore(b *block) {
	if b.p != alloc.Nil && b.size > 0 {
		_ = rp.insertSpan(span{lo: int(b.p), hi: int(b.p) + int(b.size)})
	}
}

func (rp *replayer) verify(b *block, id int) error {
	if b.size == 0 {
		return nil
	}
	payload := rp.a.Payload(b.p)
	if len(payload) < int(b.size) {
		return fmt.Errorf("%w: id %d at %#x is no longer an allocated block", ErrPayloadChanged, id, uint32(b.p))
	}
	if !checkPattern(payload[:b.size], id) {
		return fmt.Errorf("%w: id %d at %#x", ErrPayloadChanged, id, uint32(b.p))
	}
	return nil
}

func patternByte(id, i int) byte {
	return byte(id*31) ^ byte(i)
}

func fillPattern(b []byte, id int) {
	for i := range b {
		b[i] = patternByte(id, i)
	}
}

func checkPattern(b []byte, id int) bool {
	for i := range b {
		if b[i] != patternByte(id, i) {
			return false
		}
	}
	return true
}

// Summary aggregates several replays.
type Summary struct {
	Traces      int
	Ops         int
	Utilization float64 // Weighted mean of per-trace utilization
	Throughput  float64 // Total requests over total timed seconds
	Index       float64 // UtilWeight*util + (1-UtilWeight)*min(1, throughput/reference), in [0, 1]
}

// Summarize combines results. Traces with weight 0 count once.
func Summarize(results []*Result) Summary {
	var s Summary
	var weights, util float64
	var elapsed time.Duration
	for _, r := range results {
		w := float64(max(r.Weight, 1))
		weights += w
		util += w * r.Utilization
		s.Ops += r.Ops
		elapsed += r.Elapsed
		s.Traces++
	}
	if weights > 0 {
		s.Utilization = util / weights
	}
	if elapsed > 0 {
		s.Throughput = float64(s.Ops) / elapsed.Seconds()
	}
	s.Index = UtilWeight*s.Utilization + (1-UtilWeight)*min(1, s.Throughput/ReferenceThroughput)
	return s
}
