package timeutil

import "time"

func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
