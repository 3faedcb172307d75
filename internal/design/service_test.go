package design_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
)

type fixture struct {
	svc     *design.Service
	stores  *store.Service
	storeID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	stores := store.NewService(ms.Stores())
	st, err := stores.Create(context.Background(), 1, store.CreateInput{Name: "Demo Shop"})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		svc:     design.NewService(ms.Designs(), stores, "https://shop.example.com/"),
		stores:  stores,
		storeID: st.ID,
	}
}

func TestGetCreatesEmptyDesign(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Get(context.Background(), f.storeID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(d.DesignData) != "{}" || d.Version != 1 || d.IsPublished {
		t.Fatalf("got %+v", d)
	}
	again, err := f.svc.Get(context.Background(), f.storeID, 1)
	if err != nil || again.ID != d.ID {
		t.Fatalf("second get: %+v, %v", again, err)
	}
}

func TestOwnerRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Get(ctx, f.storeID, 2); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("Get: %v", err)
	}
	if _, err := f.svc.Update(ctx, f.storeID, 2, entity.Patch{}, 0); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("Update: %v", err)
	}
	if _, err := f.svc.Publish(ctx, f.storeID, 2); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("Publish: %v", err)
	}
}

func TestUpdateSyncsLogo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var p entity.Patch
	if err := json.Unmarshal([]byte(`{"design_data":{"storeLogo":"https://cdn.example.com/l.png","blocks":[]},"custom_css":"body{}"}`), &p); err != nil {
		t.Fatal(err)
	}
	d, err := f.svc.Update(ctx, f.storeID, 1, p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d.CustomCSS == nil || *d.CustomCSS != "body{}" {
		t.Fatalf("custom css = %v", d.CustomCSS)
	}
	st, _ := f.stores.Get(ctx, f.storeID)
	if st.LogoURL == nil || *st.LogoURL != "https://cdn.example.com/l.png" {
		t.Fatalf("logo = %v", st.LogoURL)
	}
}

func TestPatchNulls(t *testing.T) {
	d := entity.NewDesign(1)
	d.DesignData = database.JSONB(`{"a":1}`)
	d.Theme = database.JSONB(`{"dark":true}`)

	var p entity.Patch
	if err := json.Unmarshal([]byte(`{"design_data":null,"theme":null}`), &p); err != nil {
		t.Fatal(err)
	}
	p.Apply(d)
	if string(d.DesignData) != "{}" || d.Theme != nil {
		t.Fatalf("design_data %s theme %s", d.DesignData, d.Theme)
	}

	d.Theme = database.JSONB(`{"dark":true}`)
	entity.Patch{}.Apply(d)
	if string(d.Theme) != `{"dark":true}` {
		t.Fatalf("absent theme changed: %s", d.Theme)
	}
}

func TestPublishAndVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Publish(ctx, f.storeID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsPublished || d.Version != 1 {
		t.Fatalf("first publish: %+v", d)
	}
	d, err = f.svc.Publish(ctx, f.storeID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Version != 2 {
		t.Fatalf("version = %d, want 2", d.Version)
	}

	if _, err := f.svc.Update(ctx, f.storeID, 1, entity.Patch{}, 1); !errors.Is(err, design.ErrVersionConflict) {
		t.Fatalf("stale update: %v", err)
	}
	if _, err := f.svc.Update(ctx, f.storeID, 1, entity.Patch{}, 2); err != nil {
		t.Fatalf("current update: %v", err)
	}
}

func TestPublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Public(ctx, "demo-shop"); !errors.Is(err, design.ErrNotPublished) {
		t.Fatalf("no design: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.storeID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Public(ctx, "demo-shop"); !errors.Is(err, design.ErrNotPublished) {
		t.Fatalf("draft design: %v", err)
	}
	if _, err := f.svc.Public(ctx, "nope"); !errors.Is(err, store.ErrStoreNotFound) {
		t.Fatalf("unknown slug: %v", err)
	}

	if _, err := f.svc.Publish(ctx, f.storeID, 1); err != nil {
		t.Fatal(err)
	}
	pub, err := f.svc.Public(ctx, "demo-shop")
	if err != nil {
		t.Fatal(err)
	}
	if pub.PublishedURL != "https://shop.example.com/s/demo-shop" || !pub.Published || pub.Name != "Demo Shop" {
		t.Fatalf("got %+v", pub)
	}
}
