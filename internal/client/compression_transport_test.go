package client

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

const methodResponse = `<?xml version="1.0"?><methodResponse><params><param><value><struct>` +
	`<member><name>status</name><value><string>200 OK</string></value></member>` +
	`</struct></value></param></params></methodResponse>`

func compress(t *testing.T, encoding string, w io.Writer) io.WriteCloser {
	t.Helper()
	switch encoding {
	case "gzip":
		return gzip.NewWriter(w)
	case "br":
		return brotli.NewWriter(w)
	case "zstd":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			t.Fatalf("Failed to create zstd writer: %v", err)
		}
		return zw
	}
	t.Fatalf("unsupported encoding %q", encoding)
	return nil
}

func TestCompressionTransport_Decompresses(t *testing.T) {
	for _, encoding := range []string{"gzip", "br", "zstd"} {
		t.Run(encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Accept-Encoding") != acceptEncoding {
					t.Errorf("Expected Accept-Encoding %q, got %q", acceptEncoding, r.Header.Get("Accept-Encoding"))
				}

				w.Header().Set("Content-Type", "text/xml")
				w.Header().Set("Content-Encoding", encoding)
				w.WriteHeader(http.StatusOK)

				cw := compress(t, encoding, w)
				_, _ = cw.Write([]byte(methodResponse))
				_ = cw.Close()
			}))
			defer server.Close()

			client := &http.Client{Transport: newCompressionTransport(nil)}

			resp, err := client.Post(server.URL, "text/xml", bytes.NewBufferString("<methodCall/>"))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("Failed to read response body: %v", err)
			}

			if string(body) != methodResponse {
				t.Errorf("Expected body %q, got %q", methodResponse, body)
			}
			if resp.Header.Get("Content-Encoding") != "" {
				t.Errorf("Expected Content-Encoding header to be removed, got %q", resp.Header.Get("Content-Encoding"))
			}
			if resp.ContentLength != -1 {
				t.Errorf("Expected ContentLength -1, got %d", resp.ContentLength)
			}
			if !resp.Uncompressed {
				t.Error("Expected response to be marked as uncompressed")
			}
		})
	}
}

func TestCompressionTransport_NoCompression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(methodResponse))
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != methodResponse {
		t.Errorf("Expected body %q, got %q", methodResponse, body)
	}
}

func TestCompressionTransport_PreserveExistingAcceptEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "identity" {
			t.Errorf("Expected Accept-Encoding header to be 'identity', got %q", r.Header.Get("Accept-Encoding"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
}

func TestCompressionTransport_UnknownEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "compress")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("raw"))
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "raw" {
		t.Errorf("Expected body 'raw', got %q", body)
	}
	if resp.Header.Get("Content-Encoding") != "compress" {
		t.Errorf("Expected Content-Encoding header to be kept, got %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestCompressionTransport_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
}

func TestCompressionTransport_InvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not gzip at all"))
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}

	resp, err := client.Get(server.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("Expected an error for a corrupt gzip body")
	}
}

func TestOutermostEncoding(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"simple gzip", "gzip", "gzip"},
		{"simple zstd", "zstd", "zstd"},
		{"with whitespace", " gzip ", "gzip"},
		{"comma list", "identity, gzip", "gzip"},
		{"comma list with whitespace", "gzip , br", "br"},
		{"uppercase", "GZIP", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := outermostEncoding(tt.header)
			if result != tt.expected {
				t.Errorf("outermostEncoding(%q) = %q, expected %q", tt.header, result, tt.expected)
			}
		})
	}
}
