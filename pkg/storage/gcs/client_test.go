package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignedReadURLVerifiesWithKey(t *testing.T) {
	t.Parallel()

	key := mustGenerateKey(t)
	client := &Client{
		defaultBucket: "bucket",
		serviceAccount: &serviceAccountInfo{
			clientEmail: "signer@example.com",
			privateKey:  key,
		},
	}

	object := "invoices/user-1/invoice-K&K1001-abc.pdf"
	urlStr, err := client.SignedReadURL("", object, 5*time.Minute)
	if err != nil {
		t.Fatalf("SignedReadURL returned error: %v", err)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		t.Fatalf("parse signed read url: %v", err)
	}
	if !strings.EqualFold(parsed.Host, "storage.googleapis.com") {
		t.Fatalf("unexpected host %s", parsed.Host)
	}
	if parsed.Path != "/bucket/"+object {
		t.Fatalf("unexpected path %s", parsed.Path)
	}

	values := parsed.Query()
	if got := values.Get("GoogleAccessId"); got != "signer@example.com" {
		t.Fatalf("unexpected GoogleAccessId %q", got)
	}
	expires := values.Get("Expires")
	if expires == "" {
		t.Fatal("Expires missing")
	}

	rawSig, err := base64.StdEncoding.DecodeString(values.Get("Signature"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	hash := sha256.Sum256([]byte("GET\n\n\n" + expires + "\n/bucket/" + object))
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, hash[:], rawSig); err != nil {
		t.Fatalf("verify read signature: %v", err)
	}
}

func TestSignedURLErrors(t *testing.T) {
	t.Parallel()

	client := &Client{
		serviceAccount: &serviceAccountInfo{
			clientEmail: "test@example.com",
			privateKey:  mustGenerateKey(t),
		},
	}

	cases := []struct {
		name        string
		bucket      string
		object      string
		contentType string
		expires     time.Duration
	}{
		{"missing bucket", "", "object", "application/pdf", time.Minute},
		{"missing object", "bucket", "", "application/pdf", time.Minute},
		{"missing contentType", "bucket", "object", "", time.Minute},
		{"negative ttl", "bucket", "object", "application/pdf", -time.Minute},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.SignedURL(tc.bucket, tc.object, tc.contentType, tc.expires); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}

	if _, err := (&Client{}).SignedReadURL("bucket", "object", time.Minute); err == nil {
		t.Fatal("expected error without service account")
	}
}

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func staticToken() *tokenSource {
	return &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
		return "token", time.Now().Add(time.Hour), nil
	}}
}

func TestUploadSendsMediaRequest(t *testing.T) {
	t.Parallel()

	var gotBody string
	client := &Client{
		defaultBucket: "bucket",
		tokenSource:   staticToken(),
		uploadBase:    "https://upload.test/storage/v1",
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			if req.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", req.Method)
			}
			if req.URL.Query().Get("uploadType") != "media" {
				t.Errorf("expected media upload, got %s", req.URL.RawQuery)
			}
			if req.URL.Query().Get("name") != "invoices/u/invoice.pdf" {
				t.Errorf("unexpected object name %s", req.URL.Query().Get("name"))
			}
			if req.Header.Get("Content-Type") != "application/pdf" {
				t.Errorf("unexpected content type %s", req.Header.Get("Content-Type"))
			}
			if req.Header.Get("Authorization") != "Bearer token" {
				t.Errorf("unexpected auth %s", req.Header.Get("Authorization"))
			}
			b, _ := io.ReadAll(req.Body)
			gotBody = string(b)
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Header: http.Header{}}
		})},
	}

	if err := client.Upload(context.Background(), "", "invoices/u/invoice.pdf", "application/pdf", []byte("%PDF-1.3")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotBody != "%PDF-1.3" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestUploadSurfacesStatus(t *testing.T) {
	t.Parallel()

	client := &Client{
		defaultBucket: "bucket",
		tokenSource:   staticToken(),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			return &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden", Body: io.NopCloser(strings.NewReader("denied")), Header: http.Header{}}
		})},
	}

	err := client.Upload(context.Background(), "", "invoices/u/invoice.pdf", "application/pdf", nil)
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestDeleteObjectNotFound(t *testing.T) {
	t.Parallel()

	client := &Client{
		defaultBucket: "bucket",
		tokenSource:   staticToken(),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			if req.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", req.Method)
			}
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}
		})},
	}

	if err := client.DeleteObject(context.Background(), "", "invoices/file.pdf"); err != nil {
		t.Fatalf("DeleteObject not found should succeed: %v", err)
	}
}

func mustGenerateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}
