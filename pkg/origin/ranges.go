package origin

import (
	"errors"
	"strconv"
	"strings"
)

// errUnsatisfiable marks a Range header that selects no byte of the object.
var errUnsatisfiable = errors.New("range not satisfiable")

type byteRange struct {
	start  int64
	length int64
}

// parseRange parses a single-range "bytes=" header against an object of
// size bytes. ok is false when the header should be ignored (other units,
// multiple ranges or malformed syntax) and the full object served.
func parseRange(header string, size int64) (r byteRange, ok bool, err error) {
	ranges, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(ranges, ",") {
		return byteRange{}, false, nil
	}

	first, last, found := strings.Cut(strings.TrimSpace(ranges), "-")
	if !found {
		return byteRange{}, false, nil
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		// Suffix range: the final n bytes.
		n, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || n < 0 {
			return byteRange{}, false, nil
		}
		if n == 0 {
			return byteRange{}, false, errUnsatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, length: n}, true, nil
	}

	start, perr := strconv.ParseInt(first, 10, 64)
	if perr != nil || start < 0 {
		return byteRange{}, false, nil
	}
	if start >= size {
		return byteRange{}, false, errUnsatisfiable
	}

	end := size - 1
	if last != "" {
		e, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || e < start {
			return byteRange{}, false, nil
		}
		if e < end {
			end = e
		}
	}
	return byteRange{start: start, length: end - start + 1}, true, nil
}
