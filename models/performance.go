package models

import "time"

// Performance is one recorded dub take. It is created the moment recording stops
// and is immutable afterwards, except for the single transcription fill-in once
// speech-to-text completes. A new recording replaces it wholesale.
type Performance struct {
	Audio         []byte    `json:"-"`
	MIMEType      string    `json:"mime_type"`
	Duration      float64   `json:"duration"`
	Timestamp     time.Time `json:"timestamp"`
	Transcription string    `json:"transcription,omitempty"`
}
