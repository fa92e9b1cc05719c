// Package utils provides common utility functions for FRJAR.ai.
package utils

import (
	"time"
)

// AST is the Arabia Standard Time location (UTC+3) used for calendar days.
var AST *time.Location

func init() {
	var err error
	AST, err = time.LoadLocation("Asia/Riyadh")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		AST = time.FixedZone("AST", 3*60*60)
	}
}

// DateLayout is the calendar-day key format used by the daily history.
const DateLayout = "2006-01-02"

// LoadZone resolves a configured zone name, falling back to AST.
func LoadZone(name string) *time.Location {
	if name == "" {
		return AST
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return AST
	}
	return loc
}

// NowAST returns the current time in AST.
func NowAST() time.Time {
	return time.Now().In(AST)
}

// DayKey returns the calendar day of t in loc as "2006-01-02".
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = AST
	}
	return t.In(loc).Format(DateLayout)
}

// TodayAST returns today's calendar day in AST.
func TodayAST() string {
	return DayKey(time.Now(), AST)
}

// FormatDateTimeAST formats a time.Time to "2006-01-02 15:04:05 AST".
func FormatDateTimeAST(t time.Time) string {
	return t.In(AST).Format("2006-01-02 15:04:05 AST")
}
