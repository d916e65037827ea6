package genai

import (
	"encoding/base64"
	"encoding/json"
)

// Part is one element of a generation request: either text or an inline
// image. Order matters; text instructions typically precede images so
// they condition the model.
type Part struct {
	text string

	mimeType string
	data     []byte
}

// Text creates a text part.
func Text(s string) Part {
	return Part{text: s}
}

// InlineImage creates an inline image part carrying raw bytes tagged with
// a media type.
func InlineImage(mimeType string, data []byte) Part {
	return Part{mimeType: mimeType, data: data}
}

// IsImage reports whether the part carries inline image data.
func (p Part) IsImage() bool { return p.data != nil }

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type wirePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

// MarshalJSON emits the upstream wire shape: {"text": ...} for text parts
// and {"inline_data": {"mime_type", "data"}} with base64 payload for images.
func (p Part) MarshalJSON() ([]byte, error) {
	w := wirePart{}
	if p.IsImage() {
		w.InlineData = &inlineData{
			MimeType: p.mimeType,
			Data:     base64.StdEncoding.EncodeToString(p.data),
		}
	} else {
		w.Text = p.text
	}
	return json.Marshal(w)
}
