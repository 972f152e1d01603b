package task

import "encoding/json"

const (
	// MetaActiveSubProtocol holds the stack of active sub-protocol frames.
	MetaActiveSubProtocol = "active_subprotocol"

	// SubProtocolTriage names the medical triage sub-dialog.
	SubProtocolTriage = "triage"
)

// Frame is one entry of the active sub-protocol stack. It carries the
// correlation ids of the remote sub-task so the capability stays stateless.
type Frame struct {
	Protocol  string `json:"protocol"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// SubProtocols decodes the sub-protocol stack from metadata, bottom first.
func (t *Task) SubProtocols() []Frame {
	raw, ok := t.Metadata[MetaActiveSubProtocol]
	if !ok || raw == nil {
		return nil
	}
	if frames, ok := raw.([]Frame); ok {
		return append([]Frame(nil), frames...)
	}
	// Metadata that went through JSON holds []any of maps.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var frames []Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil
	}
	return frames
}

// ActiveSubProtocol returns the top of the stack.
func (t *Task) ActiveSubProtocol() (Frame, bool) {
	frames := t.SubProtocols()
	if len(frames) == 0 {
		return Frame{}, false
	}
	return frames[len(frames)-1], true
}

// PushSubProtocol hands turn routing to a nested protocol.
func (t *Task) PushSubProtocol(f Frame) {
	frames := append(t.SubProtocols(), f)
	t.setFrames(frames)
}

// PopSubProtocol returns control to the parent flow. It returns the frame
// that was removed, or false if the stack was empty.
func (t *Task) PopSubProtocol() (Frame, bool) {
	frames := t.SubProtocols()
	if len(frames) == 0 {
		return Frame{}, false
	}
	top := frames[len(frames)-1]
	t.setFrames(frames[:len(frames)-1])
	return top, true
}

func (t *Task) setFrames(frames []Frame) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	if len(frames) == 0 {
		delete(t.Metadata, MetaActiveSubProtocol)
		return
	}
	t.Metadata[MetaActiveSubProtocol] = frames
}
