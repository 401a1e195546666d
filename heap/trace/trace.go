// Package trace reads allocation traces and replays them against a heap
// allocator, validating every result and measuring space utilization and
// throughput.
//
// A trace file starts with four header numbers followed by one request per
// line:
//
//	20000        suggested heap size (ignored)
//	2            number of distinct block ids
//	5            number of requests
//	1            weight
//	a 0 512      allocate 512 bytes as block 0
//	a 1 128
//	r 0 640      resize block 0 to 640 bytes
//	f 1          free block 1
//	f 0
//
// Blank lines and lines starting with # are ignored. Files may carry a UTF-8
// or UTF-16 byte order mark.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// CommentPrefix starts a line that is skipped.
	CommentPrefix = "#"

	// HeaderFields is the number of numbers before the first request.
	HeaderFields = 4

	// ScannerMaxLineSize bounds a single trace line.
	ScannerMaxLineSize = 64 * 1024
)

// ErrSyntax indicates a malformed trace file.
var ErrSyntax = errors.New("trace: syntax error")

// OpKind is the request type of one trace line.
type OpKind byte

const (
	OpAlloc   OpKind = 'a'
	OpRealloc OpKind = 'r'
	OpFree    OpKind = 'f'
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	case OpFree:
		return "free"
	default:
		return fmt.Sprintf("OpKind(%q)", byte(k))
	}
}

// Op is one request.
type Op struct {
	Kind OpKind
	ID   int    // Block id the request refers to
	Size uint32 // Requested bytes (0 for free)
	Line int    // Source line, for error messages
}

// Trace is a parsed trace file.
type Trace struct {
	Name              string
	SuggestedHeapSize int
	NumIDs            int
	Weight            int
	Ops               []Op
}

// ParseFile reads and parses the trace at path. The trace is named after the
// file.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	tr, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tr.Name = filepath.Base(path)
	return tr, nil
}

// Parse reads a trace. The declared request count must match the number of
// request lines and every id must be below the declared id count.
func Parse(r io.Reader) (*Trace, error) {
	// BOMOverride switches to UTF-16 when a UTF-16 BOM is present and strips
	// a UTF-8 BOM; plain ASCII passes through unchanged.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, decoder))
	scanner.Buffer(make([]byte, 0, 4096), ScannerMaxLineSize)

	tr := &Trace{}
	var header []int
	declaredOps := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		fields := strings.Fields(line)

		if len(header) < HeaderFields {
			for _, f := range fields {
				n, err := strconv.Atoi(f)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("%w: line %d: header value %q is not a non-negative integer", ErrSyntax, lineNo, f)
				}
				header = append(header, n)
			}
			if len(header) > HeaderFields {
				return nil, fmt.Errorf("%w: line %d: request on a header line", ErrSyntax, lineNo)
			}
			if len(header) == HeaderFields {
				tr.SuggestedHeapSize, tr.NumIDs, declaredOps, tr.Weight = header[0], header[1], header[2], header[3]
				tr.Ops = make([]Op, 0, declaredOps)
			}
			continue
		}

		op, err := parseOp(fields, lineNo, tr.NumIDs)
		if err != nil {
			return nil, err
		}
		tr.Ops = append(tr.Ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	if len(header) < HeaderFields {
		return nil, fmt.Errorf("%w: header has %d of %d fields", ErrSyntax, len(header), HeaderFields)
	}
	if len(tr.Ops) != declaredOps {
		return nil, fmt.Errorf("%w: header declares %d requests, found %d", ErrSyntax, declaredOps, len(tr.Ops))
	}
	return tr, nil
}

func parseOp(fields []string, lineNo, numIDs int) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("%w: line %d: unknown request %q", ErrSyntax, lineNo, fields[0])
	}
	op := Op{Kind: OpKind(fields[0][0]), Line: lineNo}

	want := 3
	switch op.Kind {
	case OpAlloc, OpRealloc:
	case OpFree:
		want = 2
	default:
		return Op{}, fmt.Errorf("%w: line %d: unknown request %q", ErrSyntax, lineNo, fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%w: line %d: %s takes %d fields, got %d", ErrSyntax, lineNo, op.Kind, want, len(fields))
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= numIDs {
		return Op{}, fmt.Errorf("%w: line %d: block id %q outside [0, %d)", ErrSyntax, lineNo, fields[1], numIDs)
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return Op{}, fmt.Errorf("%w: line %d: size %q: %w", ErrSyntax, lineNo, fields[2], err)
		}
		op.Size = uint32(size)
	}
	return op, nil
}
