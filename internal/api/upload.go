package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/google/uuid"
)

// TranscribeAudio uploads a recording and returns its transcript.
func (c *Client) TranscribeAudio(ctx context.Context, audio io.Reader) (*Transcript, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.SetBoundary(uuid.NewString()); err != nil {
		return nil, fmt.Errorf("set boundary: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="recording.mp4"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	data, err := c.send(ctx, PathWhisperTranscript, body.Bytes(), w.FormDataContentType(), c.callConfig(nil))
	if err != nil {
		return nil, err
	}

	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		c.logger.Error("failed to decode response", "path", PathWhisperTranscript, "payload", string(data), "error", err)
		return nil, fmt.Errorf("decode %s response: %w", PathWhisperTranscript, err)
	}
	return &transcript, nil
}
