package resolver

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/engine/refdata"
)

type fakeKnown map[[3]string][]string

func (f fakeKnown) KnownOEMs(mk, model, detail string) []string {
	return f[[3]string{mk, model, detail}]
}

type fakeScanner struct {
	results map[string][]string
	calls   []string
}

func (f *fakeScanner) ScanOEMs(_ context.Context, kw string) []string {
	f.calls = append(f.calls, kw)
	return f.results[kw]
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestResolveMergesSources(t *testing.T) {
	known := fakeKnown{{"BMW", "F30", "oil filter housing"}: {"11427525335", "learned1"}}
	r := New(refdata.Default(), known, nil, quiet())
	vc := domain.VehicleContext{Make: "BMW", Model: "F30", Detail: "oil filter housing"}

	got := r.Candidates(context.Background(), vc, "BMW F30 oil filter housing")
	want := []domain.Candidate{
		{"11428576524", WeightLookup},
		{"11428506797", WeightLookup},
		{"11427525335", WeightCatalog},
		{"LEARNED1", WeightKnown},
		{"1103.TQ", WeightKeyword},
		{"06J115403Q", WeightKeyword},
		{"11427612143", WeightKeyword},
		{"03L115389C", WeightKeyword},
		{"31319824", WeightKeyword},
		{"04E115397R", WeightKeyword},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %v\nwant %v", got, want)
	}
}

func TestResolveRegexOutranksTables(t *testing.T) {
	scanner := &fakeScanner{}
	r := New(refdata.Default(), nil, scanner, quiet())
	got := r.Resolve(context.Background(), domain.VehicleContext{}, "06J115403Q housing")
	if !reflect.DeepEqual(got, []string{"06J115403Q"}) {
		t.Fatalf("got %v", got)
	}
	if len(scanner.calls) != 0 {
		t.Fatal("live scan must not run when other evidence exists")
	}
}

func TestResolveTableKeysNormalizedFallback(t *testing.T) {
	r := New(refdata.Default(), nil, nil, quiet())
	vc := domain.VehicleContext{Make: "bmw", Model: "f30", Detail: "water pump"}
	got := r.Candidates(context.Background(), vc, "")
	if len(got) == 0 || got[0] != (domain.Candidate{Value: "11517546994", Score: WeightLookup}) {
		t.Fatalf("lowercase context should resolve via normalized keys, got %v", got)
	}
}

func TestResolveLiveScanFallback(t *testing.T) {
	scanner := &fakeScanner{results: map[string][]string{
		"xc60":    {"31319824"},
		"mystery": {"31319824", "30777394"},
	}}
	r := New(refdata.Default(), nil, scanner, quiet())
	got := r.Candidates(context.Background(), domain.VehicleContext{}, "Volvo XC60 mystery widget bracket")

	if !reflect.DeepEqual(scanner.calls, []string{"xc60", "mystery", "widget"}) {
		t.Fatalf("scan keywords %v", scanner.calls)
	}
	want := []domain.Candidate{{"31319824", WeightLiveScan}, {"30777394", WeightLiveScan}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveNoEvidence(t *testing.T) {
	r := New(refdata.Default(), nil, nil, quiet())
	if got := r.Resolve(context.Background(), domain.VehicleContext{}, "hello there"); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestScanKeywordsSkipsStopwordsAndShortTokens(t *testing.T) {
	r := New(refdata.Default(), nil, nil, quiet())
	got := r.scanKeywords("bmw f30 a4 xy left door mirror glass")
	if !reflect.DeepEqual(got, []string{"left", "door", "mirror"}) {
		t.Fatalf("got %v", got)
	}
}

func TestAccumulatorRanking(t *testing.T) {
	var acc accumulator
	acc.add([]string{"a", " B "}, 80)
	acc.add([]string{"c", ""}, 90)
	acc.add([]string{"b", "A"}, 95)
	acc.add([]string{"d"}, 80)

	got := acc.ranked()
	want := []domain.Candidate{{"B", 95}, {"A", 95}, {"C", 90}, {"D", 80}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
