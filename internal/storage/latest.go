package storage

import "time"

// MinuteOfDayKey returns the selection key for t: its UTC hour and minute
// as the integer HHMM. The calendar date is not part of the key.
func MinuteOfDayKey(t time.Time) int {
	u := t.UTC()
	return u.Hour()*100 + u.Minute()
}

// Latest picks the object with the greatest MinuteOfDayKey. Among equal keys
// the one listed last wins. Returns false if objects is empty.
//
// Known limitation: an object written at 23:50 yesterday beats one written at
// 09:15 today. Archives rely on this ordering, so it is kept.
func Latest(objects []ObjectInfo) (ObjectInfo, bool) {
	if len(objects) == 0 {
		return ObjectInfo{}, false
	}

	best := 0
	bestKey := MinuteOfDayKey(objects[0].LastModified)
	for i := 1; i < len(objects); i++ {
		if k := MinuteOfDayKey(objects[i].LastModified); k >= bestKey {
			best, bestKey = i, k
		}
	}
	return objects[best], true
}
