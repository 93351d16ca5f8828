package caption

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

func uniformImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFallbackCaptionWording(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want string
	}{
		{
			name: "dark landscape jpg",
			src: Source{
				Pixels: uniformImage(64, 48, color.RGBA{A: 255}),
				Format: "jpg", Width: 64, Height: 48,
			},
			want: "A dark landscape JPG image with resolution 64x48.",
		},
		{
			name: "bright portrait png",
			src: Source{
				Pixels: uniformImage(48, 64, color.RGBA{R: 250, G: 250, B: 250, A: 255}),
				Format: "png", Width: 48, Height: 64,
			},
			want: "A bright portrait PNG image with resolution 48x64.",
		},
		{
			name: "mid gray is moderately lit",
			src: Source{
				Pixels: uniformImage(32, 32, color.RGBA{R: 128, G: 128, B: 128, A: 255}),
				Format: "jpg", Width: 32, Height: 32,
			},
			want: "A moderately lit landscape JPG image with resolution 32x32.",
		},
		{
			name: "no pixels still produces a caption",
			src:  Source{Format: "png", Width: 10, Height: 20},
			want: "A PNG image with resolution 10x20.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Fallback{}.Caption(context.Background(), tc.src)
			if err != nil {
				t.Fatalf("Caption() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Caption() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFallbackCaptionDeterministic(t *testing.T) {
	src := Source{Pixels: uniformImage(20, 10, color.RGBA{R: 90, G: 90, B: 90, A: 255}), Format: "jpg", Width: 20, Height: 10}
	first, _ := Fallback{}.Caption(context.Background(), src)
	second, _ := Fallback{}.Caption(context.Background(), src)
	if first != second {
		t.Fatalf("fallback caption not deterministic: %q vs %q", first, second)
	}
}

func TestGeminiCaptionerMissingKey(t *testing.T) {
	c := NewGeminiCaptioner(GeminiOptions{})
	_, err := c.Caption(context.Background(), Source{Data: []byte("x"), MIME: "image/jpeg"})
	if !errors.Is(err, domain.ErrCaptionUnavailable) {
		t.Fatalf("Caption() error = %v, want ErrCaptionUnavailable", err)
	}
}

func TestGeminiCaptionerParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{Text: " a cat on a chair "}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewGeminiCaptioner(GeminiOptions{APIKey: "test-key", BaseURL: server.URL})
	got, err := c.Caption(context.Background(), Source{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"})
	if err != nil {
		t.Fatalf("Caption() error = %v", err)
	}
	if got != "a cat on a chair" {
		t.Fatalf("Caption() = %q", got)
	}
}

func TestGeminiCaptionerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	}))
	defer server.Close()

	c := NewGeminiCaptioner(GeminiOptions{APIKey: "test-key", BaseURL: server.URL})
	_, err := c.Caption(context.Background(), Source{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"})
	if !errors.Is(err, domain.ErrCaptionUnavailable) {
		t.Fatalf("Caption() error = %v, want ErrCaptionUnavailable", err)
	}
}

func TestOpenAICaptionerParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"a dog in the park"}}]}`))
	}))
	defer server.Close()

	c, err := NewOpenAICaptioner(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAICaptioner: %v", err)
	}
	got, err := c.Caption(context.Background(), Source{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"})
	if err != nil {
		t.Fatalf("Caption() error = %v", err)
	}
	if got != "a dog in the park" {
		t.Fatalf("Caption() = %q", got)
	}
}

func TestOpenAICaptionerRequiresKey(t *testing.T) {
	if _, err := NewOpenAICaptioner(OpenAIOptions{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
