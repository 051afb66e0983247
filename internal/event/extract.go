package event

import "strings"

// envelopeKey is the wrapper most payloads nest their fields under.
const envelopeKey = "message"

type object map[string]any

type path []string

// at walks p through nested objects.
func (o object) at(p path) (any, bool) {
	var cur any = map[string]any(o)
	for _, key := range p {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// lookup resolves p under the envelope first and at the top level second,
// returning the first value accepted by keep.
func (e Event) lookup(p path, keep func(any) bool) (any, bool) {
	if e.root == nil {
		return nil, false
	}
	primary := append(path{envelopeKey}, p...)
	for _, candidate := range []path{primary, p} {
		if v, ok := e.root.at(candidate); ok && keep(v) {
			return v, true
		}
	}
	return nil, false
}

func (e Event) lookupString(p path) string {
	v, ok := e.lookup(p, func(v any) bool {
		s, ok := v.(string)
		return ok && s != ""
	})
	if !ok {
		return ""
	}
	return v.(string)
}

// CallID returns the platform call identifier.
func (e Event) CallID() (string, bool) {
	id := e.lookupString(path{"call", "id"})
	return id, id != ""
}

// Status returns the call status carried by a status update.
func (e Event) Status() (string, bool) {
	s := e.lookupString(path{"status"})
	return s, s != ""
}

// EndedReason returns the platform's reason for a call ending, when present.
func (e Event) EndedReason() (string, bool) {
	s := e.lookupString(path{"endedReason"})
	return s, s != ""
}

// LastUserUtterance returns the content of the most recent caller-authored
// entry in the transcript fragment attached to the event. It reports false
// when that entry is blank.
func (e Event) LastUserUtterance() (string, bool) {
	v, ok := e.lookup(path{"artifact", "messages"}, isList)
	if !ok {
		return "", false
	}
	list := v.([]any)
	for i := len(list) - 1; i >= 0; i-- {
		m, ok := list[i].(map[string]any)
		if !ok || m["role"] != roleUser {
			continue
		}
		// Only the newest caller entry counts, even when blank.
		content := messageText(m)
		if strings.TrimSpace(content) == "" {
			return "", false
		}
		return content, true
	}
	return "", false
}

// FunctionName returns the name of the function the platform asked to
// invoke, from either the legacy single-call shape or the tool-call list.
func (e Event) FunctionName() (string, bool) {
	if name := e.lookupString(path{"functionCall", "name"}); name != "" {
		return name, true
	}
	v, ok := e.lookup(path{"toolCallList"}, isList)
	if !ok {
		return "", false
	}
	for _, item := range v.([]any) {
		call, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := object(call).at(path{"function", "name"}); ok {
			if s, ok := name.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Transcript returns the transcript text and its speaker role. The text may
// arrive as a plain string or as an object with text and role fields.
func (e Event) Transcript() (text, role string, ok bool) {
	v, found := e.lookup(path{"transcript"}, func(v any) bool {
		switch t := v.(type) {
		case string:
			return t != ""
		case map[string]any:
			return true
		}
		return false
	})
	if !found {
		return "", "", false
	}
	switch t := v.(type) {
	case string:
		text = t
	case map[string]any:
		text, _ = t["text"].(string)
		role, _ = t["role"].(string)
	}
	if role == "" {
		role = e.lookupString(path{"role"})
	}
	return text, role, true
}

const roleUser = "user"

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// messageText accepts both "content" and the platform's older "message" key.
func messageText(m map[string]any) string {
	if s, ok := m["content"].(string); ok && s != "" {
		return s
	}
	s, _ := m["message"].(string)
	return s
}
