package util

import "time"

var kst = loadKST()

func loadKST() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// FormatKST는 한국 표준시로 변환해 포맷한다.
func FormatKST(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(kst).Format(layout)
}
