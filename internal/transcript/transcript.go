// Package transcript folds the external transcription document into
// the normalized shape the pipeline consumes. The audio agent and the
// speech-to-text engine are external collaborators; this package only
// speaks their output schema.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"concierge/internal/logging"
)

// Document is the raw transcription result produced by the audio agent.
type Document struct {
	Meta     map[string]interface{} `json:"meta"`
	Content  []Entry                `json:"content"`
	FullText string                 `json:"full_text"`
}

// Entry is one transcribed utterance. Older agent versions emit "time",
// newer ones "timestamp"; both are accepted.
type Entry struct {
	Time      string `json:"time,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
	Status    string `json:"status,omitempty"`
}

// Segment is one normalized utterance.
type Segment struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	IsFinal   bool   `json:"is_final"`
}

// Normalized is the shape consumed by the extraction stage.
type Normalized struct {
	Transcription string                 `json:"transcription"`
	Segments      []Segment              `json:"segments"`
	FullText      string                 `json:"full_text"`
	Metadata      map[string]interface{} `json:"metadata"`
	Source        string                 `json:"source"`
	RequestMaker  string                 `json:"request_maker"`
	Participants  []string               `json:"participants"`
	StartTime     string                 `json:"start_time"`
}

// Normalize converts a raw transcription document. Entries with empty
// text are dropped; request_maker is the speaker of the first surviving
// segment; participants is the de-duplicated, order-preserving speaker
// list.
func Normalize(doc Document) Normalized {
	log := logging.Get(logging.CategoryTranscript)

	var segments []Segment
	var textParts []string
	for _, item := range doc.Content {
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		ts := item.Time
		if ts == "" {
			ts = item.Timestamp
		}
		speaker := item.Speaker
		if speaker == "" {
			speaker = "Speaker"
		}
		segments = append(segments, Segment{
			Text:      item.Text,
			Timestamp: ts,
			Speaker:   speaker,
			IsFinal:   item.Status == "" || item.Status == "final",
		})
		textParts = append(textParts, item.Text)
	}

	var participants []string
	seen := make(map[string]bool)
	for _, seg := range segments {
		if !seen[seg.Speaker] {
			seen[seg.Speaker] = true
			participants = append(participants, seg.Speaker)
		}
	}

	requestMaker := ""
	if len(segments) > 0 {
		requestMaker = segments[0].Speaker
	}

	fullText := doc.FullText
	if fullText == "" {
		fullText = strings.Join(textParts, "")
	}

	startTime := ""
	if doc.Meta != nil {
		if v, ok := doc.Meta["start_time"]; ok {
			startTime = fmt.Sprintf("%v", v)
		}
	}

	log.Info("normalized transcript: %d segments, %d participants, request_maker=%q",
		len(segments), len(participants), requestMaker)

	return Normalized{
		Transcription: fullText,
		Segments:      segments,
		FullText:      fullText,
		Metadata:      doc.Meta,
		Source:        "audio_agent",
		RequestMaker:  requestMaker,
		Participants:  participants,
		StartTime:     startTime,
	}
}

// FromText wraps a typed text block in the normalized shape. The
// operator at the console is the sole speaker and request maker.
func FromText(text, startTime string) Normalized {
	return Normalized{
		Transcription: text,
		FullText:      text,
		Source:        "text_input",
		RequestMaker:  "Operator",
		Participants:  []string{"Operator"},
		StartTime:     startTime,
	}
}

// LoadFile reads and normalizes a transcription result document.
func LoadFile(path string) (Normalized, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Normalized{}, fmt.Errorf("failed to read transcript %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Normalized{}, fmt.Errorf("failed to parse transcript %s: %w", path, err)
	}
	return Normalize(doc), nil
}
