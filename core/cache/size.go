package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// entryOverhead accounts for the 8-byte expiry, 8-byte insertion
// timestamp and 8-byte node/handle bookkeeping every entry carries,
// even though the arena representation doesn't lay them out exactly
// this way (§4.5: "8 expiry + 8 timestamp + 8 structure").
const entryOverhead = 24

// sizeBytes computes the accounting size of one entry: the UTF-8 byte
// length of its key, the length of its (already-encrypted) value, plus
// the fixed per-entry overhead.
func sizeBytes(key string, valueBytes []byte) int {
	return len(key) + len(valueBytes) + entryOverhead
}

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb
)

// ParseMaxBytes accepts either an absolute size string ("100MB",
// "1.5GB", "512KB", case-insensitive) or a percentage of hostMemBytes
// ("25%", strictly in (0, 100]) and returns the resulting byte count.
func ParseMaxBytes(spec string, hostMemBytes int64) (int64, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return 0, fmt.Errorf("cache: empty maxBytes spec")
	}

	if strings.HasSuffix(trimmed, "%") {
		pctStr := strings.TrimSuffix(trimmed, "%")
		pct, err := strconv.ParseFloat(pctStr, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: invalid percentage %q: %w", spec, err)
		}
		if pct <= 0 || pct > 100 {
			return 0, fmt.Errorf("cache: percentage %q must be in (0, 100]", spec)
		}
		return int64(float64(hostMemBytes) * pct / 100), nil
	}

	upper := strings.ToUpper(trimmed)
	var unit int64
	var numPart string
	switch {
	case strings.HasSuffix(upper, "GB"):
		unit, numPart = gb, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "MB"):
		unit, numPart = mb, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "KB"):
		unit, numPart = kb, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "B"):
		unit, numPart = 1, upper[:len(upper)-1]
	default:
		return 0, fmt.Errorf("cache: unrecognized maxBytes spec %q", spec)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil {
		return 0, fmt.Errorf("cache: invalid size %q: %w", spec, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("cache: size %q must be positive", spec)
	}

	return int64(value * float64(unit)), nil
}
