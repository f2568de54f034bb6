// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/proctor/lib/sealed"
	"github.com/bureau-foundation/proctor/lib/testutil"
)

// storageServer accepts multipart uploads and hands each received file
// to inspect, which returns the status and body to answer with.
func storageServer(t *testing.T, inspect func(preset, fileName string, file []byte) (int, string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		status, body := inspect(r.FormValue("upload_preset"), header.Filename, data)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPTransportUpload(t *testing.T) {
	artifact := testArtifact(10)
	server := storageServer(t, func(preset, fileName string, file []byte) (int, string) {
		if preset != "proctor_recordings" {
			t.Errorf("preset = %q", preset)
		}
		if fileName != artifact.FileName() {
			t.Errorf("file name = %q, want %q", fileName, artifact.FileName())
		}
		if !bytes.Equal(file, artifact.Data) {
			t.Error("uploaded bytes differ from artifact")
		}
		return http.StatusOK, `{"url":"http://cdn.example/a.webm","secure_url":"https://cdn.example/a.webm"}`
	})

	transport := &HTTPTransport{Endpoint: server.URL, Preset: "proctor_recordings", HTTPClient: server.Client()}
	var mu sync.Mutex
	var last float64
	url, err := transport.Upload(context.Background(), artifact, func(fraction float64) {
		mu.Lock()
		last = fraction
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example/a.webm" {
		t.Fatalf("url = %q, want secure_url", url)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != 1 {
		t.Fatalf("final progress = %v, want 1", last)
	}
}

func TestHTTPTransportStorageErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		permanent   bool
	}{
		{"json error", http.StatusBadRequest, `{"error":{"message":"Upload preset not found"}}`, "Upload preset not found", true},
		{"plain body", http.StatusServiceUnavailable, "overloaded\n", "overloaded", false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "slow down", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := storageServer(t, func(string, string, []byte) (int, string) {
				return test.status, test.body
			})
			transport := &HTTPTransport{Endpoint: server.URL, HTTPClient: server.Client()}
			_, err := transport.Upload(context.Background(), testArtifact(11), func(float64) {})

			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("Upload = %v, want *StorageError", err)
			}
			if storageErr.StatusCode != test.status || storageErr.Message != test.wantMessage {
				t.Fatalf("StorageError = %+v", storageErr)
			}
			if storageErr.Permanent() != test.permanent {
				t.Fatalf("Permanent() = %v, want %v", storageErr.Permanent(), test.permanent)
			}
		})
	}
}

func TestHTTPTransportSealsForReviewers(t *testing.T) {
	reviewer, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer reviewer.Close()
	recipients, err := sealed.ParseRecipients([]string{reviewer.PublicKey})
	if err != nil {
		t.Fatalf("ParseRecipients: %v", err)
	}

	artifact := testArtifact(12)
	received := make(chan []byte, 1)
	server := storageServer(t, func(_ string, fileName string, file []byte) (int, string) {
		if !strings.HasSuffix(fileName, ".age") {
			t.Errorf("file name = %q, want .age suffix", fileName)
		}
		received <- file
		return http.StatusOK, `{"secure_url":"https://cdn.example/sealed"}`
	})

	transport := &HTTPTransport{Endpoint: server.URL, HTTPClient: server.Client(), Recipients: recipients}
	if _, err := transport.Upload(context.Background(), artifact, func(float64) {}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	file := testutil.RequireReceive(t, received, time.Second, "sealed upload")
	if bytes.Equal(file, artifact.Data) {
		t.Fatal("recording uploaded in the clear")
	}
	plaintext, err := sealed.Open(file, reviewer.PrivateKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(plaintext, artifact.Data) {
		t.Fatal("sealed upload does not open to the recording")
	}
}

type brokenRecipient struct{}

func (brokenRecipient) Wrap([]byte) ([]*age.Stanza, error) {
	return nil, errors.New("reviewer key unusable")
}

func TestSealingFailureIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := storageServer(t, func(string, string, []byte) (int, string) {
		requests.Add(1)
		return http.StatusOK, `{"secure_url":"https://cdn.example/never"}`
	})

	transport := &HTTPTransport{
		Endpoint:   server.URL,
		HTTPClient: server.Client(),
		Recipients: []age.Recipient{brokenRecipient{}},
	}
	pipeline, _, cache := newTestPipeline(t, transport, nil)

	_, err := pipeline.Submit(context.Background(), testArtifact(14))
	var localErr *LocalError
	if !errors.As(err, &localErr) {
		t.Fatalf("Submit = %v, want *LocalError", err)
	}
	var transferErr *TransferError
	if !errors.As(err, &transferErr) || transferErr.Attempts != 1 {
		t.Fatalf("Submit = %v, want a single attempt", err)
	}
	if requests.Load() != 0 || cache.clears.Load() != 0 {
		t.Fatalf("requests %d, cache clears %d; want none", requests.Load(), cache.clears.Load())
	}
}

func TestPipelineOverHTTPRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := storageServer(t, func(string, string, []byte) (int, string) {
		if requests.Add(1) < 3 {
			return http.StatusBadGateway, `{"error":{"message":"upstream"}}`
		}
		return http.StatusOK, `{"secure_url":"https://cdn.example/third-time"}`
	})

	transport := &HTTPTransport{Endpoint: server.URL, HTTPClient: server.Client()}
	pipeline, fake, cache := newTestPipeline(t, transport, nil)

	result := drive(t, fake, submitAsync(pipeline, testArtifact(13)))
	if result.err != nil {
		t.Fatalf("Submit: %v", result.err)
	}
	if result.url != "https://cdn.example/third-time" {
		t.Fatalf("url = %q", result.url)
	}
	if requests.Load() != 3 || cache.clears.Load() != 1 {
		t.Fatalf("requests %d, cache clears %d", requests.Load(), cache.clears.Load())
	}
}
