package models

import (
	"math"
	"strconv"
	"time"
)

type MoodEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Mood      int       `json:"mood" db:"mood"`
	Note      string    `json:"note" db:"note"`
	Tags      []string  `json:"tags" db:"tags"`
	EntryDate Date      `json:"entry_date" db:"entry_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type MoodStats struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	Count        int            `json:"count"`
	Average      float64        `json:"average"`
	Distribution map[string]int `json:"distribution"`
	Streak       int            `json:"streak"`
}

// SummarizeMoods computes stats for entries dated within [from, to]. today anchors the streak.
func SummarizeMoods(entries []MoodEntry, from, to, today time.Time) MoodStats {
	st := MoodStats{
		From:         from.Format(time.DateOnly),
		To:           to.Format(time.DateOnly),
		Distribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}

	days := make(map[string]bool, len(entries))
	sum := 0
	for _, e := range entries {
		d := e.EntryDate.String()
		days[d] = true
		if d < st.From || d > st.To {
			continue
		}
		st.Count++
		sum += e.Mood
		st.Distribution[strconv.Itoa(e.Mood)]++
	}
	if st.Count > 0 {
		st.Average = math.Round(float64(sum)/float64(st.Count)*100) / 100
	}

	day := dateOnly(today)
	if !days[day.Format(time.DateOnly)] {
		day = day.AddDate(0, 0, -1)
	}
	for days[day.Format(time.DateOnly)] {
		st.Streak++
		day = day.AddDate(0, 0, -1)
	}
	return st
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
