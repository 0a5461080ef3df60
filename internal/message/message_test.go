package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	m := Message{
		Seq:        3,
		TS:         NowTS(),
		From:       "claude",
		Type:       TypeResponse,
		Round:      2,
		Opinion:    OpinionAgree,
		Content:    "I agree with the REST approach.",
		Confidence: 0.85,
	}

	raw, err := Marshal(m)
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestParseAllDropsMalformedAndBlankLines(t *testing.T) {
	input := strings.Join([]string{
		`{"seq":1,"ts":"t","from":"user","type":"start","topic":"x","participants":["a","b"]}`,
		``,
		`not json at all`,
		`{"seq":2,"ts":"t","from":"a","type":"response","round":1,"opinion":"agree"`, // torn/partial line
		`{"seq":3,"ts":"t","from":"b","type":"response","round":1,"opinion":"disagree"}`,
	}, "\n")

	msgs, err := ParseAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Seq)
	assert.Equal(t, 3, msgs[1].Seq)
}

func TestMaxResponseRound(t *testing.T) {
	msgs := []Message{
		{Type: TypeStart},
		{Type: TypeResponse, Round: 1},
		{Type: TypeResponse, Round: 2},
		{Type: TypeStatus, Round: 5}, // not a response; must not count
	}
	assert.Equal(t, 2, MaxResponseRound(msgs))
	assert.Equal(t, 0, MaxResponseRound(nil))
}

func TestLatestFollowup(t *testing.T) {
	msgs := []Message{
		{Type: TypeFollowup, Content: "first"},
		{Type: TypeResponse},
		{Type: TypeFollowup, Content: "second"},
	}
	got := LatestFollowup(msgs)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Content)

	assert.Nil(t, LatestFollowup([]Message{{Type: TypeResponse}}))
}

func TestEffectiveMessagesTruncatesAfterEnd(t *testing.T) {
	msgs := []Message{
		{Seq: 1, Type: TypeStart},
		{Seq: 2, Type: TypeEnd},
		{Seq: 3, Type: TypeResponse}, // appended after end; must be ignored
	}
	eff := EffectiveMessages(msgs)
	require.Len(t, eff, 2)
	assert.True(t, Ended(eff))
}

func TestRespondedInRoundIsCaseInsensitive(t *testing.T) {
	msgs := []Message{{Type: TypeResponse, Round: 1, From: "Claude"}}
	assert.True(t, RespondedInRound(msgs, "claude", 1))
	assert.False(t, RespondedInRound(msgs, "claude", 2))
	assert.False(t, RespondedInRound(msgs, "codex", 1))
}

func TestRespondentsInRound(t *testing.T) {
	msgs := []Message{
		{Type: TypeResponse, Round: 1, From: "claude"},
		{Type: TypeResponse, Round: 1, From: "codex"},
		{Type: TypeResponse, Round: 2, From: "claude"},
	}
	got := RespondentsInRound(msgs, 1)
	assert.Len(t, got, 2)
	assert.True(t, got["claude"])
	assert.True(t, got["codex"])
}
