package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

const promotionsJSON = `{"data":[
	{"id":1,"code":"TET2025","discountType":"Percentage","discountValue":10,"startDate":"2025-01-01T00:00:00Z","endDate":"2025-02-28T23:59:59Z"},
	{"id":2,"code":"FREESHIP","discountType":"Fixed","discountValue":30000,"usageLimit":5,"usedCount":5}
]}`

func newTestPromotionService(t *testing.T) *PromotionService {
	t.Helper()
	client, norm := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Promotions/active" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(promotionsJSON))
	})
	svc := NewPromotionService(client, norm)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestPromotionService_Active(t *testing.T) {
	svc := newTestPromotionService(t)

	got, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Type != model.PromotionTypePercentage {
		t.Errorf("Type = %q, want Percentage", got[0].Type)
	}
}

func TestPromotionService_FindByCode(t *testing.T) {
	svc := newTestPromotionService(t)

	p, err := svc.FindByCode(context.Background(), " tet2025 ")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if p.ID != 1 {
		t.Errorf("ID = %d, want 1", p.ID)
	}

	// 使用回数の上限に達したコード
	_, err = svc.FindByCode(context.Background(), "FREESHIP")
	assertAPIErrorCode(t, err, model.ErrCodePromotionInvalid)

	_, err = svc.FindByCode(context.Background(), "NOPE")
	assertAPIErrorCode(t, err, model.ErrCodePromotionInvalid)

	_, err = svc.FindByCode(context.Background(), "")
	assertAPIErrorCode(t, err, model.ErrCodePromotionInvalid)
}
