package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second

	client := guard.NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a custom Transport from safeurl")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://example.com/leaf.jpg",
		"https://cdn.example.vn/images/la-lua.png?w=800",
		"http://203.0.113.10/photo.webp",
	} {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) returned error: %v", u, err)
		}
	}
}

// TestValidateURL_BlockedAddresses はプライベート・ループバック・リンクローカル等の拒否をテストする。
func TestValidateURL_BlockedAddresses(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"http://10.0.0.1/a.jpg",
		"http://172.16.0.1/a.jpg",
		"http://192.168.1.100/a.jpg",
		"http://127.0.0.1/a.jpg",
		"http://169.254.169.254/latest/meta-data/",
		"http://100.64.0.1/a.jpg",
		"http://[::1]/a.jpg",
		"http://[fe80::1]/a.jpg",
		"http://[fd00::1]/a.jpg",
		"http://[::ffff:127.0.0.1]/a.jpg",
		"http://localhost/a.jpg",
		"http://api.localhost/a.jpg",
		"http://metadata.google.internal/computeMetadata/v1/",
	} {
		err := guard.ValidateURL(u)
		if !errors.Is(err, ErrBlockedURL) {
			t.Errorf("ValidateURL(%q) = %v, want ErrBlockedURL", u, err)
		}
	}
}

// TestValidateURL_InvalidURL は不正なURL・スキームの拒否をテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"",
		"not-a-url",
		"ftp://example.com/a.jpg",
		"file:///etc/passwd",
		"data:image/png;base64,AAAA",
		"https:///nohost.jpg",
	} {
		if err := guard.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) should have returned error", u)
		}
	}
}
