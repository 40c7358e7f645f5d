package catalog

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient はhttptestサーバーに向けたクライアントと正規化層を返す。
func newTestClient(t *testing.T, handler http.HandlerFunc) (*apiclient.Client, *envelope.Normalizer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := repository.NewScopedStore(repository.NewMemoryKVRepo(), "s1")
	client, err := apiclient.New(apiclient.Options{BaseURL: server.URL, Tokens: tokens, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return client, envelope.NewNormalizer(discardLogger(), nil)
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}
