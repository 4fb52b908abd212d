package model

import "time"

// Track is one analyzed audio item in the session pool.
//
// BPM, Energy and Duration use zero as "analysis could not determine this";
// none of them is ever legitimately zero for playable audio. CamelotKey is
// empty when the detected musical key did not map onto the harmonic wheel.
type Track struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	Filename   string    `json:"filename" gorm:"size:512"`
	FilePath   string    `json:"filepath" gorm:"size:1024"`
	BPM        float64   `json:"bpm"`
	Key        string    `json:"key" gorm:"size:16"` // display only, scoring uses CamelotKey
	CamelotKey string    `json:"camelotKey" gorm:"size:8"`
	Energy     float64   `json:"energy"`
	Duration   float64   `json:"duration"` // seconds
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Eligible reports whether the track carries everything sequencing and
// mixing need. Tracks failing this are skipped silently, never erroring
// the whole batch. File existence is checked separately by the caller
// that owns filesystem access.
func (t *Track) Eligible() bool {
	return t != nil &&
		t.BPM > 0 &&
		t.CamelotKey != "" &&
		t.Energy > 0 &&
		t.Duration > 0 &&
		t.FilePath != ""
}
