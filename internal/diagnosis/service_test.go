package diagnosis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
)

// mockImageSource はImageSourceのモック。
type mockImageSource struct {
	fetchFn func(ctx context.Context, rawURL string) (*security.Image, error)
}

func (m *mockImageSource) Fetch(ctx context.Context, rawURL string) (*security.Image, error) {
	return m.fetchFn(ctx, rawURL)
}

var _ ImageSource = (*mockImageSource)(nil)
var _ ImageSource = (*security.ImageFetcher)(nil)
var _ TextSanitizer = (*security.ContentSanitizer)(nil)

func newTestService(t *testing.T, handler http.HandlerFunc, images ImageSource, opts Options) (*Service, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := repository.NewScopedStore(repository.NewMemoryKVRepo(), "s1")
	client, err := apiclient.New(apiclient.Options{BaseURL: server.URL, Tokens: tokens, Logger: logger})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	var logs bytes.Buffer
	norm := envelope.NewNormalizer(slog.New(slog.NewJSONHandler(&logs, nil)), nil)
	return NewService(client, norm, security.NewContentSanitizer(), images, opts, logger), &logs
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

func TestService_Diagnose_SendsPayload(t *testing.T) {
	var got map[string]any
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Diagnosis" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result":"ok"}`))
	}, nil, Options{})

	img := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	if _, err := svc.Diagnose(context.Background(), Input{Description: " Lá bị vàng ", ImageBase64: "data:image/jpeg;base64," + img}); err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if got["description"] != "Lá bị vàng" {
		t.Errorf("description = %v", got["description"])
	}
	if got["language"] != "vi" || got["plantType"] != "general" {
		t.Errorf("language/plantType = %v/%v, want vi/general", got["language"], got["plantType"])
	}
	if got["imageBase64"] != img {
		t.Errorf("imageBase64 = %v, want data URI prefix stripped", got["imageBase64"])
	}
	if got["skipCache"] != false {
		t.Errorf("skipCache = %v, want false", got["skipCache"])
	}
}

func TestService_Diagnose_ConfiguredOptions(t *testing.T) {
	var got diagnoseRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result":"ok"}`))
	}, nil, Options{Language: "en", PlantType: "rice"})

	if _, err := svc.Diagnose(context.Background(), Input{Description: "spots"}); err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if got.Language != "en" || got.PlantType != "rice" {
		t.Errorf("sent = %+v", got)
	}
}

func TestService_Diagnose_StructuredReport(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{
			"plantName":"<b>Lúa</b>",
			"disease":{"name":"Đạo ôn","symptoms":"Vết bệnh hình thoi"},
			"treatment":{"immediate":["Phun thuốc"]},
			"confidence":0.87
		}}`))
	}, nil, Options{})

	res, err := svc.Diagnose(context.Background(), Input{Description: "lá có đốm"})
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if res.Report == nil {
		t.Fatal("expected structured report")
	}
	if res.Report.PlantName != "Lúa" {
		t.Errorf("PlantName = %q, want HTML stripped", res.Report.PlantName)
	}
	if res.Report.Confidence == nil || *res.Report.Confidence != 87 {
		t.Errorf("Confidence = %v, want 87", res.Report.Confidence)
	}
	if !strings.HasPrefix(res.Text, "Thông tin cây trồng\n- Tên cây: Lúa") {
		t.Errorf("Text = %q", res.Text)
	}
	if !strings.HasSuffix(res.Text, "Độ tin cậy\n- Mức độ: 87%") {
		t.Errorf("Text = %q, should end with confidence", res.Text)
	}
}

func TestService_Diagnose_FreeTextPassThrough(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"result", `{"result":"Cây bị thiếu đạm."}`, "Cây bị thiếu đạm."},
		{"message", `{"data":{"message":"Hãy chụp rõ hơn."}}`, "Hãy chụp rõ hơn."},
		{"json string", `"Cây khỏe mạnh."`, "Cây khỏe mạnh."},
		{"wrapped string", `{"data":"Lá bị nấm, cần cắt bỏ."}`, "Lá bị nấm, cần cắt bỏ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, nil, Options{})

			res, err := svc.Diagnose(context.Background(), Input{Description: "x"})
			if err != nil {
				t.Fatalf("Diagnose: %v", err)
			}
			if res.Report != nil {
				t.Errorf("Report = %+v, want nil", res.Report)
			}
			if res.Text != tt.want {
				t.Errorf("Text = %q, want %q", res.Text, tt.want)
			}
		})
	}
}

func TestService_Diagnose_UnrecognizedShape(t *testing.T) {
	for _, body := range []string{`[]`, `null`, `{"data":null}`} {
		svc, logs := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}, nil, Options{})

		res, err := svc.Diagnose(context.Background(), Input{Description: "x"})
		if err != nil {
			t.Fatalf("%s: Diagnose: %v", body, err)
		}
		if res.Text != fallbackText {
			t.Errorf("%s: Text = %q, want fallback", body, res.Text)
		}
		if !strings.Contains(logs.String(), "diagnosis") {
			t.Errorf("%s: expected shape mismatch warning, got %q", body, logs.String())
		}
	}
}

func TestService_Diagnose_Validation(t *testing.T) {
	called := false
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, nil, Options{})

	_, err := svc.Diagnose(context.Background(), Input{Description: "  "})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidInput)

	_, err = svc.Diagnose(context.Background(), Input{ImageBase64: "!!not-base64!!"})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidImage)

	_, err = svc.Diagnose(context.Background(), Input{Description: strings.Repeat("a", maxDescriptionLength+1)})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidInput)

	if called {
		t.Error("invalid input must not reach the backend")
	}
}

func TestService_DiagnoseImageURL(t *testing.T) {
	var got diagnoseRequest
	images := &mockImageSource{fetchFn: func(ctx context.Context, rawURL string) (*security.Image, error) {
		if rawURL != "https://cdn.example.com/la.png" {
			t.Errorf("url = %q", rawURL)
		}
		return &security.Image{Data: []byte("png-bytes"), MIMEType: "image/png"}, nil
	}}
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result":"ok"}`))
	}, images, Options{})

	if _, err := svc.DiagnoseImageURL(context.Background(), "", " https://cdn.example.com/la.png "); err != nil {
		t.Fatalf("DiagnoseImageURL: %v", err)
	}
	if got.ImageBase64 != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Errorf("imageBase64 = %q", got.ImageBase64)
	}
}

func TestService_DiagnoseImageURL_FetchErrors(t *testing.T) {
	for _, fetchErr := range []error{security.ErrBlockedURL, security.ErrInvalidImage, errors.New("timeout")} {
		images := &mockImageSource{fetchFn: func(context.Context, string) (*security.Image, error) {
			return nil, fetchErr
		}}
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("backend must not be called")
		}, images, Options{})

		_, err := svc.DiagnoseImageURL(context.Background(), "", "http://10.0.0.1/a.png")
		assertAPIErrorCode(t, err, model.ErrCodeInvalidImage)
	}
}
