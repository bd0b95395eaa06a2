package timestamp

import "time"

const (
	// LogsLayout is the timestamp format of text log lines
	LogsLayout = "2006-01-02 15:04:05"

	// Layout is the default timestamp format of serialized values
	Layout = time.RFC3339Nano
)

// UnixSeconds returns t as fractional epoch seconds, the format
// structured records carry in their timestamp field.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func Now() time.Time {
	return time.Now().UTC()
}
