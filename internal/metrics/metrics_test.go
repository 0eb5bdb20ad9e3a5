package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/atomizehq/atomizer/internal/provider"
)

type stubProvider struct {
	err error
}

func (s stubProvider) Complete(context.Context, provider.CompleteRequest) (string, error) {
	return "ok", s.err
}

func (s stubProvider) AnalyzeImage(context.Context, string, string, string) (string, error) {
	return "ok", s.err
}

func (s stubProvider) EmbedText(context.Context, string) ([]float32, error) { return nil, s.err }

func (s stubProvider) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, s.err
}

func (s stubProvider) ModelInfo() provider.ModelInfo {
	return provider.ModelInfo{Provider: "stub", Model: "stub-1"}
}

func TestWrapProviderRecordsCalls(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := m.WrapProvider(stubProvider{})

	if _, err := p.Complete(context.Background(), provider.CompleteRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := p.AnalyzeImage(context.Background(), "img", "prompt", ""); err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}

	got := testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("stub", "complete", "ok"))
	if got != 1 {
		t.Fatalf("complete ok count = %v, want 1", got)
	}
	got = testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("stub", "analyze_image", "ok"))
	if got != 1 {
		t.Fatalf("analyze_image ok count = %v, want 1", got)
	}
}

func TestWrapProviderRecordsErrors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := m.WrapProvider(stubProvider{err: errors.New("boom")})

	if _, err := p.Complete(context.Background(), provider.CompleteRequest{Prompt: "hi"}); err == nil {
		t.Fatalf("expected error")
	}

	got := testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("stub", "complete", "error"))
	if got != 1 {
		t.Fatalf("complete error count = %v, want 1", got)
	}
	got = testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("stub", "complete", "ok"))
	if got != 0 {
		t.Fatalf("complete ok count = %v, want 0", got)
	}
}

func TestModelInfoPassesThrough(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := m.WrapProvider(stubProvider{})

	info := p.ModelInfo()
	if info.Provider != "stub" || info.Model != "stub-1" {
		t.Fatalf("info = %+v", info)
	}
}
