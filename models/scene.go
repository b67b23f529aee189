package models

import "time"

// DialogueLine is a single line of the generated screenplay, in playback order.
type DialogueLine struct {
	Character string `json:"character" jsonschema_description:"The name of the character speaking this line"`
	Text      string `json:"text" jsonschema_description:"The spoken dialogue text for this line"`
	Emotion   string `json:"emotion" jsonschema_description:"The emotional delivery of the line, e.g. 'tense', 'playful', 'furious'"`
}

// Scene is one generated screenplay unit plus its media artifacts. Created by the
// orchestrator when a production starts; media URLs are attached one by one as each
// generation step completes. Replaced wholesale when a new production starts.
type Scene struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Context  string         `json:"context"`
	Dialogue []DialogueLine `json:"dialogue"`
	Language string         `json:"language"`

	ImageURL       string    `json:"image_url,omitempty"`
	VideoURL       string    `json:"video_url,omitempty"`
	SyncedVideoURL string    `json:"synced_video_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DialogueText joins the scene's lines into the text a performer would read,
// in playback order.
func (s *Scene) DialogueText() string {
	text := ""
	for i, line := range s.Dialogue {
		if i > 0 {
			text += "\n"
		}
		text += line.Character + ": " + line.Text
	}
	return text
}
