package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"asin-insights/models"
)

const samplePayload = `{
  "target": {"asin":"B0CC282PBW","product_name":"Smart Scale","brand":"RENPHO","price":24.99,
    "est_daily_impressions":1200,"est_daily_clicks":85,"ratings_count":540,"avg_rating":4.3,
    "keywords_top4":18,"keywords_page1":92},
  "competitors": [
    {"rank":2,"comp_asin":"B0COMP0002","product_name":"B","brand_name":"Y","price":21.5,"rating":4.1,
     "ratings_count":300,"keywords_top4":12,"keywords_page1":70,"est_daily_clicks":60},
    {"rank":1,"comp_asin":"B0COMP0001","product_name":"A","brand_name":"X","price":22.99,"rating":4.4,
     "ratings_count":800,"keywords_top4":20,"keywords_page1":110,"est_daily_clicks":95}
  ]
}`

func TestRemoteSource_Success(t *testing.T) {
	var gotASIN string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotASIN = body["asin"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	src, err := NewRemoteSource(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewRemoteSource: %v", err)
	}
	b, err := src.Fetch(context.Background(), Request{ASIN: "B0CC282PBW"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotASIN != "B0CC282PBW" {
		t.Fatalf("server saw asin %q", gotASIN)
	}
	if b.Target.Price != 24.99 || len(b.Competitors) != 2 {
		t.Fatalf("unexpected bundle: %+v", b)
	}
	if b.Competitors[0].Rank != 1 || b.Competitors[0].CompASIN != "B0COMP0001" {
		t.Fatalf("competitors not sorted by rank: %+v", b.Competitors)
	}
}

func TestRemoteSource_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src, _ := NewRemoteSource(srv.URL, time.Second)
	if _, err := src.Fetch(context.Background(), Request{ASIN: "B0CC282PBW"}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestRemoteSource_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"target": nope`))
	}))
	defer srv.Close()

	src, _ := NewRemoteSource(srv.URL, time.Second)
	if _, err := src.Fetch(context.Background(), Request{ASIN: "B0CC282PBW"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRemoteSource_NoCompetitors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"target":{"asin":"B0CC282PBW","price":10,"avg_rating":4},"competitors":[]}`))
	}))
	defer srv.Close()

	src, _ := NewRemoteSource(srv.URL, time.Second)
	_, err := src.Fetch(context.Background(), Request{ASIN: "B0CC282PBW"})
	if !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("got %v, want ErrInvalidBundle", err)
	}
}

func TestNewRemoteSource_RejectsBadEndpoint(t *testing.T) {
	if _, err := NewRemoteSource("", time.Second); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewRemoteSource("ftp://example.com", time.Second); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestValidate_TruncatesToFive(t *testing.T) {
	b := &models.MetricsBundle{Target: models.TargetMetrics{AvgRating: 4}}
	for i := 7; i >= 1; i-- {
		b.Competitors = append(b.Competitors, models.CompetitorMetrics{Rank: i, Rating: 4})
	}
	if err := Validate(b); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(b.Competitors) != MaxCompetitors || b.Competitors[0].Rank != 1 || b.Competitors[4].Rank != 5 {
		t.Fatalf("unexpected competitors: %+v", b.Competitors)
	}
}

func TestValidate_RejectsDuplicateRank(t *testing.T) {
	b := &models.MetricsBundle{Competitors: []models.CompetitorMetrics{{Rank: 1}, {Rank: 1}}}
	if err := Validate(b); !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("got %v, want ErrInvalidBundle", err)
	}
}

func TestValidate_RejectsRatingOutOfRange(t *testing.T) {
	b := &models.MetricsBundle{
		Target:      models.TargetMetrics{AvgRating: 5.5},
		Competitors: []models.CompetitorMetrics{{Rank: 1}},
	}
	if err := Validate(b); !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("got %v, want ErrInvalidBundle", err)
	}
}
