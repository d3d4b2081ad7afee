package stream

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func collect(t *testing.T, dec *Decoder, input string) ([]Chunk, Stats, error) {
	t.Helper()
	var chunks []Chunk
	stats, err := dec.Decode(context.Background(), strings.NewReader(input), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	return chunks, stats, err
}

func TestDecodeTwoFrames(t *testing.T) {
	input := "{\"data\":\"Hel\"}\n{\"data\":\"lo\",\"questionId\":42}\n"

	chunks, stats, err := collect(t, NewDecoder(), input)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	var text strings.Builder
	for _, c := range chunks {
		if c.Data != nil {
			text.WriteString(*c.Data)
		}
	}
	assert.Equal(t, "Hello", text.String())
	assert.Nil(t, chunks[0].QuestionID)
	require.NotNil(t, chunks[1].QuestionID)
	assert.Equal(t, int64(42), *chunks[1].QuestionID)
	assert.Equal(t, int64(2), stats.Frames)
	assert.Equal(t, int64(len(input)), stats.Bytes)
}

func TestDecodeMalformedFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "at EOF", input: `{"data": "unterminated`, want: "unterminated"},
		{name: "newline terminated", input: "{\"data\":\"oops\"\n", want: "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := captureLogger()

			chunks, stats, err := collect(t, NewDecoder(WithLogger(logger)), tt.input)
			require.NoError(t, err)
			assert.Empty(t, chunks)
			assert.Equal(t, int64(1), stats.Dropped)
			assert.Equal(t, int64(0), stats.Frames)
			assert.Equal(t, 1, strings.Count(logs.String(), "failed to decode stream frame"))
			assert.Contains(t, logs.String(), tt.want)
		})
	}
}

func TestDecodeFlushesFinalFrameWithoutNewline(t *testing.T) {
	chunks, _, err := collect(t, NewDecoder(), "{\"data\":\"a\"}\n{\"data\":\"b\",\"questionId\":1}")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "b", *chunks[1].Data)
}

func TestDecodeEmptyStream(t *testing.T) {
	chunks, stats, err := collect(t, NewDecoder(), "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, Stats{}, stats)
}

func TestDecodeMultibyteSplitAcrossReads(t *testing.T) {
	input := "{\"data\":\"héllo 🎉\"}\n{\"data\":\"ok\"}\n"

	for _, size := range []int{1, 2, 3, 5, 7} {
		chunks, _, err := collect(t, NewDecoder(WithReadSize(size)), input)
		require.NoError(t, err, "read size %d", size)
		require.Len(t, chunks, 2, "read size %d", size)
		assert.Equal(t, "héllo 🎉", *chunks[0].Data)
		assert.Equal(t, "ok", *chunks[1].Data)
	}
}

func TestDecodeCarriageReturnDoesNotSplit(t *testing.T) {
	logger, logs := captureLogger()

	// "\r\n" is one character, so both objects end up in a single frame
	// that fails to decode at EOF.
	chunks, stats, err := collect(t, NewDecoder(WithLogger(logger)), "{\"data\":\"a\"}\r\n{\"data\":\"b\"}\r\n")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Contains(t, logs.String(), "failed to decode stream frame")
}

func TestDecodeStrictPolicyAborts(t *testing.T) {
	logger, _ := captureLogger()
	dec := NewDecoder(WithFailurePolicy(Strict{}), WithLogger(logger))

	chunks, _, err := collect(t, dec, "not json\n{\"data\":\"b\"}\n")
	assert.Error(t, err)
	assert.Empty(t, chunks)
}

func TestDecodeDropPolicyContinues(t *testing.T) {
	logger, _ := captureLogger()

	chunks, stats, err := collect(t, NewDecoder(WithLogger(logger)), "not json\n{\"data\":\"b\"}\n")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "b", *chunks[0].Data)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestDecodeUnknownEntityTypeDropsFrame(t *testing.T) {
	logger, _ := captureLogger()
	input := "{\"data\":\"a\",\"entityList\":[{\"name\":\"x\",\"type\":\"planet\"}]}\n{\"data\":\"b\"}\n"

	chunks, stats, err := collect(t, NewDecoder(WithLogger(logger)), input)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "b", *chunks[0].Data)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestDecodeHandlerErrorAborts(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := NewDecoder().Decode(context.Background(), strings.NewReader("{}\n{}\n{}\n"), func(Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDecodeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDecoder().Decode(ctx, strings.NewReader("{}\n"), func(Chunk) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeCustomDetector(t *testing.T) {
	closingBrace := DetectorFunc(func(buf []byte) bool {
		return buf[len(buf)-1] == '}'
	})

	chunks, _, err := collect(t, NewDecoder(WithDetector(closingBrace)), `{"data":"a"}{"data":"b"}`)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", *chunks[0].Data)
	assert.Equal(t, "b", *chunks[1].Data)
}

func TestTrailingNewline(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want bool
	}{
		{name: "brace then newline", buf: "{}\n", want: true},
		{name: "ascii then newline", buf: "a\n", want: true},
		{name: "lone newline", buf: "\n", want: false},
		{name: "empty", buf: "", want: false},
		{name: "crlf is one character", buf: "{}\r\n", want: false},
		{name: "continuation byte before newline", buf: "\"é\n", want: false},
		{name: "no newline", buf: "{}", want: false},
		{name: "newline not last", buf: "\n}", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrailingNewline{}.Complete([]byte(tt.buf)))
		})
	}
}
