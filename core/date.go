package core

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day. The time-of-day is always midnight UTC so two Dates
// naming the same day compare equal.
type Date struct {
	time.Time
}

// DateOf drops the time-of-day of t, keeping the day as seen in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Monday returns the Monday on or before d.
func (d Date) Monday() Date {
	offset := (int(d.Weekday()) + 6) % 7 // Mon=0 .. Sun=6
	return d.AddDays(-offset)
}

// At returns the absolute time `minutes` after the start of d.
func (d Date) At(minutes int) time.Time {
	return d.Time.Add(time.Duration(minutes/60)*time.Hour + time.Duration(minutes%60)*time.Minute)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	return d.UnmarshalParam(s)
}

// UnmarshalParam implements echo.BindUnmarshaler for query & path params.
// Full RFC3339 timestamps are accepted and truncated to their day.
func (d *Date) UnmarshalParam(param string) error {
	if parsed, err := ParseDate(param); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(param))
	if err != nil {
		return err
	}
	*d = DateOf(t)
	return nil
}
