package printer

import (
	"math"
	"time"
)

// EtaSource selects the remaining-time policy.
type EtaSource int

const (
	// EtaSlicer trusts the slicer's estimate for the whole file.
	EtaSlicer EtaSource = iota
	// EtaFile extrapolates from the virtual SD card's file progress.
	EtaFile
)

// ParseEtaSource maps the configuration value; anything but "file" is slicer.
func ParseEtaSource(v string) EtaSource {
	if v == "file" {
		return EtaFile
	}
	return EtaSlicer
}

// EstimateRemaining applies, in order: the slicer estimate minus elapsed
// time when src is EtaSlicer; file-progress extrapolation when the virtual
// SD card reports progress; otherwise the slicer estimate unchanged. The
// result is never negative.
func (s Snapshot) EstimateRemaining(src EtaSource) time.Duration {
	var eta float64
	switch {
	case src == EtaSlicer:
		eta = s.File.EstimatedTime - s.Elapsed
	case s.VSDProgress > 0:
		eta = s.Elapsed/s.VSDProgress - s.Elapsed
	default:
		eta = s.File.EstimatedTime
	}
	return seconds(math.Max(0, eta))
}

// FinishTime is now plus the remaining estimate.
func (s Snapshot) FinishTime(src EtaSource, now time.Time) time.Time {
	return now.Add(s.EstimateRemaining(src))
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
