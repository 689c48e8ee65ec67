package timezone

import "time"

// FileStampLayout is the layout used for timestamps embedded in output file names.
const FileStampLayout = "2006-01-02_15-04-05"

// Load resolves an IANA location name, an empty name means the host's local zone.
func Load(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Now returns the current time in loc, nil means local time.
func Now(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// FileStamp renders t as YYYY-MM-DD_HH-MM-SS.
func FileStamp(t time.Time) string {
	return t.Format(FileStampLayout)
}

