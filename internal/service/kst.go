package service

import (
	"time"
)

// KST 业务时区：免费额度按韩国自然日重置，보관함日期也按 KST 展示
var KST = time.FixedZone("KST", 9*60*60)

// kstDayRange 返回 now 所在 KST 自然日的起止时刻（含头不含尾）
func kstDayRange(now time.Time) (time.Time, time.Time) {
	local := now.In(KST)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, KST)
	return from, from.Add(24 * time.Hour)
}

// formatKorDate 보관함展示用的短日期（KST）
func formatKorDate(t time.Time) string {
	return t.In(KST).Format("01.02 15:04")
}
