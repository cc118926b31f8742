package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gavv/httpexpect/v2"

	"github.com/vkarpovich/shopglance/internal/marketplace"
)

type stubAugmenter struct {
	calls int
	got   string
	out   string
	err   error
}

func (s *stubAugmenter) AugmentPage(_ context.Context, rawHTML string) (string, error) {
	s.calls++
	s.got = rawHTML
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

type stubLookup struct {
	offer *marketplace.Offer
	err   error
	names []string
}

func (s *stubLookup) GetPriceData(_ context.Context, name string) (*marketplace.Offer, error) {
	s.names = append(s.names, name)
	return s.offer, s.err
}

func newExpect(t *testing.T, cfg HandlerConfig) (*httpexpect.Expect, func()) {
	cfg.Logger = newTestLogger()
	srv := httptest.NewServer(NewHandler(cfg))
	return httpexpect.Default(t, srv.URL), srv.Close
}

func TestAugmentReturnsBadgedPage(t *testing.T) {
	augmenter := &stubAugmenter{out: `<body><div class="shopglance-price-badge"></div></body>`}
	expect, stop := newExpect(t, HandlerConfig{Augmenter: augmenter})
	defer stop()

	expect.POST("/augment").
		WithText("<body><div class=\"product\"></div></body>").
		Expect().
		Status(http.StatusOK).
		HasContentType("text/html").
		Body().Contains("shopglance-price-badge")

	if augmenter.calls != 1 {
		t.Fatalf("expected one augment call, got %d", augmenter.calls)
	}
	if !strings.Contains(augmenter.got, "product") {
		t.Fatalf("augmenter received unexpected body %q", augmenter.got)
	}
}

func TestAugmentRejectsWrongMethodAndEmptyBody(t *testing.T) {
	expect, stop := newExpect(t, HandlerConfig{Augmenter: &stubAugmenter{out: "<body></body>"}})
	defer stop()

	expect.GET("/augment").Expect().
		Status(http.StatusMethodNotAllowed).
		JSON().Object().HasValue("error", "augment requires POST")

	expect.POST("/augment").Expect().
		Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "empty page body")
}

func TestAugmentFailureIsInternalError(t *testing.T) {
	augmenter := &stubAugmenter{err: errors.New("parse exploded")}
	expect, stop := newExpect(t, HandlerConfig{Augmenter: augmenter})
	defer stop()

	expect.POST("/augment").
		WithText("<body></body>").
		Expect().
		Status(http.StatusInternalServerError).
		JSON().Object().HasValue("error", "page augmentation failed")
}

func TestLookupReturnsOffer(t *testing.T) {
	lookup := &stubLookup{offer: &marketplace.Offer{
		Price:     "129,00 р.",
		URL:       "https://shop.by/find/?findtext=mi+band&sort=price--number",
		ShopCount: "5 предложений",
	}}
	expect, stop := newExpect(t, HandlerConfig{Lookup: lookup})
	defer stop()

	obj := expect.GET("/lookup").
		WithQuery("name", "Mi Band 8").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.HasValue("found", true)
	obj.Value("offer").Object().HasValue("price", "129,00 р.")

	if len(lookup.names) != 1 || lookup.names[0] != "Mi Band 8" {
		t.Fatalf("lookup saw names %v", lookup.names)
	}
}

func TestLookupNoMatch(t *testing.T) {
	expect, stop := newExpect(t, HandlerConfig{Lookup: &stubLookup{}})
	defer stop()

	obj := expect.GET("/lookup").
		WithQuery("name", "nonexistent thing").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.HasValue("found", false)
	obj.NotContainsKey("offer")
}

func TestLookupRequiresName(t *testing.T) {
	expect, stop := newExpect(t, HandlerConfig{Lookup: &stubLookup{}})
	defer stop()

	expect.GET("/lookup").Expect().Status(http.StatusBadRequest)
}

func TestLookupUpstreamFailure(t *testing.T) {
	lookup := &stubLookup{err: &marketplace.TransportError{URL: "https://shop.by/find", Reason: "connection refused"}}
	expect, stop := newExpect(t, HandlerConfig{Lookup: lookup})
	defer stop()

	expect.GET("/lookup").
		WithQuery("name", "Mi Band 8").
		Expect().
		Status(http.StatusBadGateway).
		JSON().Object().HasValue("error", "marketplace lookup failed")
}

func TestHealthz(t *testing.T) {
	expect, stop := newExpect(t, HandlerConfig{})
	defer stop()

	expect.GET("/healthz").Expect().
		Status(http.StatusOK).
		JSON().Object().HasValue("status", "ok")
}

func TestMetricsMountedWhenConfigured(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	expect, stop := newExpect(t, HandlerConfig{Metrics: metricsHandler})
	defer stop()

	expect.GET("/metrics").Expect().Status(http.StatusOK).Body().Contains("# metrics")
}

func TestUnavailableComponents(t *testing.T) {
	expect, stop := newExpect(t, HandlerConfig{})
	defer stop()

	expect.POST("/augment").WithText("<body></body>").Expect().Status(http.StatusServiceUnavailable)
	expect.GET("/lookup").WithQuery("name", "x").Expect().Status(http.StatusServiceUnavailable)
}
