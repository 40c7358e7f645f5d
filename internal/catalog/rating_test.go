package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
)

func TestRatingService_ListForProduct(t *testing.T) {
	client, norm := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Ratings/product/7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":1,"productId":7,"userId":"u-1","score":5,"comment":"Tốt","createdAt":"2024-03-01T10:00:00"}]}`))
	})
	svc := NewRatingService(client, norm, discardLogger())

	got, err := svc.ListForProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListForProduct: %v", err)
	}
	if len(got) != 1 || got[0].Score != 5 || got[0].UserID != "u-1" {
		t.Errorf("ratings = %+v", got)
	}
	if got[0].CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v, want 2024", got[0].CreatedAt)
	}
}

func TestRatingService_Average(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float64
	}{
		{"bare number", `4.5`, ptr(4.5)},
		{"wrapped", `{"data":3}`, ptr(3)},
		{"average key", `{"averageRating":0}`, ptr(0)},
		{"null", `null`, nil},
		{"unrecognized", `{"foo":1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, norm := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/Ratings/product/7/average" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})
			svc := NewRatingService(client, norm, discardLogger())

			got, err := svc.Average(context.Background(), 7)
			if err != nil {
				t.Fatalf("Average: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Average = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Average = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestRatingService_Create_ValidatesScore(t *testing.T) {
	called := false
	client, norm := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	svc := NewRatingService(client, norm, discardLogger())

	for _, score := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), model.CreateRatingInput{ProductID: 1, Score: score})
		assertAPIErrorCode(t, err, model.ErrCodeInvalidRating)
	}
	if called {
		t.Error("invalid rating must not reach the backend")
	}
}

func TestRatingService_Create(t *testing.T) {
	var got model.CreateRatingInput
	client, norm := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Ratings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})
	svc := NewRatingService(client, norm, discardLogger())

	r, err := svc.Create(context.Background(), model.CreateRatingInput{ProductID: 3, Score: 4, Comment: "  Rất tốt  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Comment != "Rất tốt" || got.Score != 4 || got.ProductID != 3 {
		t.Errorf("sent = %+v", got)
	}
	if r.Score != 4 || r.ProductID != 3 {
		t.Errorf("returned = %+v", r)
	}
}

func ptr(v float64) *float64 { return &v }
