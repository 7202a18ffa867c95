package export

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"simsweep/internal/store"
)

var (
	ErrRunFailed = errors.New("run is marked failed")
	ErrNoMatch   = errors.New("stdout does not match extraction pattern")
)

// RegexExtractor builds an extractor that captures one float from a
// record's stdout using the pattern's first capture group. Failed runs
// and non-matching output map to the missing marker.
func RegexExtractor(pattern string) (Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling extraction pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("extraction pattern %q needs one capture group", pattern)
	}

	return func(rec store.RunRecord) (float64, error) {
		if rec.Failed {
			return 0, ErrRunFailed
		}
		m := re.FindStringSubmatch(rec.Stdout)
		if m == nil {
			return 0, fmt.Errorf("%w: %q", ErrNoMatch, pattern)
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing extracted value %q: %w", m[1], err)
		}
		return v, nil
	}, nil
}

// DurationExtractor yields each run's wall-clock duration in seconds.
// Failed runs map to the missing marker.
func DurationExtractor(rec store.RunRecord) (float64, error) {
	if rec.Failed {
		return 0, ErrRunFailed
	}
	return rec.Duration.Seconds(), nil
}
