package task

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/careline/internal/domain"
)

// PartKind discriminates the Part union on the wire.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// Part is one element of a message or artifact. The set of implementations
// is closed: TextPart, FilePart and DataPart.
type Part interface {
	Kind() PartKind
	isPart()
}

// TextPart carries plain text.
type TextPart struct {
	Text string `json:"text"`
}

// FilePart references or embeds a file.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // base64
}

// DataPart carries structured JSON data.
type DataPart struct {
	Data map[string]any `json:"data"` //nolint:gosec // A2A protocol requires flexible data
}

func (TextPart) Kind() PartKind { return PartKindText }
func (FilePart) Kind() PartKind { return PartKindFile }
func (DataPart) Kind() PartKind { return PartKindData }

func (TextPart) isPart() {}
func (FilePart) isPart() {}
func (DataPart) isPart() {}

// Parts is an ordered list of parts with a kind-tagged JSON encoding.
type Parts []Part

// MarshalJSON encodes every part with its "kind" discriminator.
func (ps Parts) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(ps))
	for i, p := range ps {
		var (
			data []byte
			err  error
		)
		switch v := p.(type) {
		case TextPart:
			data, err = json.Marshal(struct {
				Kind PartKind `json:"kind"`
				Text string   `json:"text"`
			}{PartKindText, v.Text})
		case FilePart:
			data, err = json.Marshal(struct {
				Kind PartKind `json:"kind"`
				File FilePart `json:"file"`
			}{PartKindFile, v})
		case DataPart:
			data, err = json.Marshal(struct {
				Kind PartKind       `json:"kind"`
				Data map[string]any `json:"data"`
			}{PartKindData, v.Data})
		default:
			return nil, fmt.Errorf("part %d: unsupported part type %T", i, p)
		}
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, data)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes kind-tagged parts. Unknown kinds are a validation error.
func (ps *Parts) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: parts must be an array", domain.ErrValidation)
	}
	parts := make(Parts, 0, len(raw))
	for i, r := range raw {
		var head struct {
			Kind PartKind        `json:"kind"`
			Text *string         `json:"text"`
			File json.RawMessage `json:"file"`
			Data map[string]any  `json:"data"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			return fmt.Errorf("%w: part %d: %v", domain.ErrValidation, i, err)
		}
		switch head.Kind {
		case PartKindText:
			if head.Text == nil {
				return fmt.Errorf("%w: part %d: text part without text", domain.ErrValidation, i)
			}
			parts = append(parts, TextPart{Text: *head.Text})
		case PartKindFile:
			var f FilePart
			if len(head.File) == 0 {
				return fmt.Errorf("%w: part %d: file part without file", domain.ErrValidation, i)
			}
			if err := json.Unmarshal(head.File, &f); err != nil {
				return fmt.Errorf("%w: part %d: %v", domain.ErrValidation, i, err)
			}
			parts = append(parts, f)
		case PartKindData:
			if head.Data == nil {
				return fmt.Errorf("%w: part %d: data part without data", domain.ErrValidation, i)
			}
			parts = append(parts, DataPart{Data: head.Data})
		default:
			return fmt.Errorf("%w: part %d: unknown kind %q", domain.ErrValidation, i, head.Kind)
		}
	}
	*ps = parts
	return nil
}

// Text joins all text parts with a single space.
func (ps Parts) Text() string {
	var texts []string
	for _, p := range ps {
		if t, ok := p.(TextPart); ok && strings.TrimSpace(t.Text) != "" {
			texts = append(texts, strings.TrimSpace(t.Text))
		}
	}
	return strings.Join(texts, " ")
}

// FirstData returns the data of the first data part, or nil.
func (ps Parts) FirstData() map[string]any {
	for _, p := range ps {
		if d, ok := p.(DataPart); ok {
			return d.Data
		}
	}
	return nil
}
