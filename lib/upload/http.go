// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"filippo.io/age"

	"github.com/bureau-foundation/proctor/lib/netutil"
	"github.com/bureau-foundation/proctor/lib/recording"
	"github.com/bureau-foundation/proctor/lib/sealed"
)

// HTTPTransport uploads artifacts as a multipart form to an unsigned
// storage endpoint: the recording in the "file" part and the preset
// name in "upload_preset".
type HTTPTransport struct {
	// Endpoint is the full upload URL.
	Endpoint string

	// Preset is the storage-side upload preset. Empty omits the field.
	Preset string

	// HTTPClient defaults to http.DefaultClient. Per-attempt timeouts
	// come from the request context, not the client.
	HTTPClient *http.Client

	// Recipients, when non-empty, seal the recording to reviewer age
	// keys before it leaves the machine. The uploaded file name gains
	// an ".age" suffix.
	Recipients []age.Recipient

	Logger *slog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *HTTPTransport) Upload(ctx context.Context, artifact *recording.Artifact, progress func(float64)) (string, error) {
	payload := artifact.Data
	fileName := artifact.FileName()
	if len(t.Recipients) > 0 {
		ciphertext, err := sealed.Seal(payload, t.Recipients)
		if err != nil {
			return "", &LocalError{Op: "sealing recording " + artifact.Digest.ShortDigest(), Err: err}
		}
		payload = ciphertext
		fileName += ".age"
	}

	body, contentType, err := t.encodeForm(fileName, payload)
	if err != nil {
		return "", &LocalError{Op: "encoding form", Err: err}
	}

	counting := netutil.NewProgressReader(bytes.NewReader(body), int64(len(body)), progress)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, counting)
	if err != nil {
		return "", &LocalError{Op: "creating request", Err: err}
	}
	request.ContentLength = int64(len(body))
	request.Header.Set("Content-Type", contentType)

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	t.logger().Debug("uploading recording",
		"recording", artifact.Digest.ShortDigest(),
		"file", fileName,
		"body_bytes", len(body),
	)
	response, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("upload request to %s failed: %w", t.Endpoint, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		storageErr := &StorageError{StatusCode: response.StatusCode}
		var decoded errorResponse
		if json.Unmarshal(responseBody, &decoded) == nil && decoded.Error.Message != "" {
			storageErr.Message = decoded.Error.Message
		} else {
			storageErr.Message = string(bytes.TrimSpace(responseBody))
		}
		return "", storageErr
	}

	var decoded uploadResponse
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if decoded.SecureURL != "" {
		return decoded.SecureURL, nil
	}
	return decoded.URL, nil
}

func (t *HTTPTransport) encodeForm(fileName string, payload []byte) ([]byte, string, error) {
	var body bytes.Buffer
	body.Grow(len(payload) + 1024)
	writer := multipart.NewWriter(&body)
	if t.Preset != "" {
		if err := writer.WriteField("upload_preset", t.Preset); err != nil {
			return nil, "", fmt.Errorf("writing upload_preset field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func (t *HTTPTransport) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger
}
