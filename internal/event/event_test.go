package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Event {
	t.Helper()
	ev, err := Parse([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"message":`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParse_NonObjectIsUnrecognized(t *testing.T) {
	for _, raw := range []string{`null`, `[]`, `"hello"`, `42`} {
		ev := mustParse(t, raw)
		require.Equal(t, KindUnrecognized, ev.Kind, raw)
		require.Equal(t, TypeUnknown, ev.Type, raw)
		_, ok := ev.CallID()
		require.False(t, ok)
	}
}

func TestParse_TypeFromEnvelopeThenTopLevel(t *testing.T) {
	ev := mustParse(t, `{"message":{"type":"status-update"},"type":"transcript"}`)
	require.Equal(t, "status-update", ev.Type)
	require.Equal(t, KindStatusUpdate, ev.Kind)

	ev = mustParse(t, `{"type":"transcript"}`)
	require.Equal(t, KindTranscript, ev.Kind)

	ev = mustParse(t, `{"message":{"type":""},"type":"hang"}`)
	require.Equal(t, KindInformational, ev.Kind)

	ev = mustParse(t, `{"message":{"type":7}}`)
	require.Equal(t, TypeUnknown, ev.Type)
	require.Equal(t, KindUnrecognized, ev.Kind)
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"assistant-request":   KindUserTurn,
		"function-call":       KindToolCall,
		"tool-calls":          KindToolCall,
		"status-update":       KindStatusUpdate,
		"transcript":          KindTranscript,
		"hang":                KindInformational,
		"speech-update":       KindInformational,
		"conversation-update": KindInformational,
		"end-of-call-report":  KindInformational,
		"something-new":       KindUnrecognized,
		"":                    KindUnrecognized,
	}
	for typ, want := range cases {
		require.Equal(t, want, Classify(typ), "type=%q", typ)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "user-turn", KindUserTurn.String())
	require.Equal(t, "unrecognized", Kind(99).String())
}

func TestCallID_PrimaryThenFallback(t *testing.T) {
	id, ok := mustParse(t, `{"message":{"call":{"id":"nested"}},"call":{"id":"top"}}`).CallID()
	require.True(t, ok)
	require.Equal(t, "nested", id)

	id, ok = mustParse(t, `{"message":{"type":"x"},"call":{"id":"top"}}`).CallID()
	require.True(t, ok)
	require.Equal(t, "top", id)

	_, ok = mustParse(t, `{"message":{"call":{}}}`).CallID()
	require.False(t, ok)
}

func TestLastUserUtterance(t *testing.T) {
	ev := mustParse(t, `{"message":{"type":"assistant-request","artifact":{"messages":[
		{"role":"user","content":"first"},
		{"role":"assistant","content":"reply"},
		{"role":"user","content":"What time is it?"},
		{"role":"assistant","content":"later"}
	]}}}`)
	text, ok := ev.LastUserUtterance()
	require.True(t, ok)
	require.Equal(t, "What time is it?", text)
}

func TestLastUserUtterance_FallbackLocationAndMessageKey(t *testing.T) {
	ev := mustParse(t, `{"type":"assistant-request","artifact":{"messages":[{"role":"user","message":"hi there"}]}}`)
	text, ok := ev.LastUserUtterance()
	require.True(t, ok)
	require.Equal(t, "hi there", text)
}

func TestLastUserUtterance_Absent(t *testing.T) {
	cases := []string{
		`{"message":{"type":"assistant-request"}}`,
		`{"message":{"artifact":{"messages":[]}}}`,
		`{"message":{"artifact":{"messages":[{"role":"assistant","content":"hello"}]}}}`,
		`{"message":{"artifact":{"messages":[{"role":"user","content":"   "}]}}}`,
		`{"message":{"artifact":{"messages":"oops"}}}`,
		`{"message":{"artifact":{"messages":[
			{"role":"user","content":"What time is it?"},
			{"role":"bot","content":"Five."},
			{"role":"user","content":"   "}
		]}}}`,
	}
	for _, raw := range cases {
		_, ok := mustParse(t, raw).LastUserUtterance()
		require.False(t, ok, raw)
	}
}

func TestStatus(t *testing.T) {
	s, ok := mustParse(t, `{"message":{"status":"ended"}}`).Status()
	require.True(t, ok)
	require.Equal(t, StatusEnded, s)

	s, ok = mustParse(t, `{"status":"in-progress"}`).Status()
	require.True(t, ok)
	require.Equal(t, "in-progress", s)
}

func TestFunctionName(t *testing.T) {
	name, ok := mustParse(t, `{"message":{"functionCall":{"name":"lookup"}}}`).FunctionName()
	require.True(t, ok)
	require.Equal(t, "lookup", name)

	name, ok = mustParse(t, `{"functionCall":{"name":"top"}}`).FunctionName()
	require.True(t, ok)
	require.Equal(t, "top", name)

	name, ok = mustParse(t, `{"message":{"toolCallList":[{"id":"t1","function":{"name":"weather"}}]}}`).FunctionName()
	require.True(t, ok)
	require.Equal(t, "weather", name)

	_, ok = mustParse(t, `{"message":{}}`).FunctionName()
	require.False(t, ok)
}

func TestTranscript(t *testing.T) {
	text, role, ok := mustParse(t, `{"message":{"transcript":{"text":"hello","role":"user"}}}`).Transcript()
	require.True(t, ok)
	require.Equal(t, "hello", text)
	require.Equal(t, "user", role)

	text, role, ok = mustParse(t, `{"message":{"role":"assistant","transcript":"plain"}}`).Transcript()
	require.True(t, ok)
	require.Equal(t, "plain", text)
	require.Equal(t, "assistant", role)

	_, _, ok = mustParse(t, `{"message":{"type":"transcript"}}`).Transcript()
	require.False(t, ok)
}

func TestEndedReason(t *testing.T) {
	r, ok := mustParse(t, `{"message":{"endedReason":"customer-ended-call"}}`).EndedReason()
	require.True(t, ok)
	require.Equal(t, "customer-ended-call", r)
}
