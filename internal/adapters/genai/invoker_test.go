package genai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avian-io/roost/internal/adapters/genai"
	. "github.com/smartystreets/goconvey/convey"
)

func upstream(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func candidateBody(texts ...string) string {
	parts := make([]map[string]string, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, map[string]string{"text": t})
	}
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	})
	return string(body)
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	Convey("Given a generation client", t, func() {
		Convey("When no API key is configured", func() {
			c := genai.NewClient()
			_, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then it fails with the configuration error", func() {
				So(errors.Is(err, genai.ErrNoAPIKey), ShouldBeTrue)
			})
		})

		Convey("When the upstream succeeds with several text fragments", func() {
			var gotPath string
			var gotBody map[string]any
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				_, _ = w.Write([]byte(candidateBody("  first", "", "second  ")))
			})
			defer srv.Close()

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			text, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then fragments are joined by newline and trimmed", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "first\nsecond")
			})

			Convey("And the request targets the model's generateContent route", func() {
				So(gotPath, ShouldEqual, "/models/gemini-2.5-pro:generateContent")
			})

			Convey("And the body carries a single user turn", func() {
				contents := gotBody["contents"].([]any)
				So(contents, ShouldHaveLength, 1)
				turn := contents[0].(map[string]any)
				So(turn["role"], ShouldEqual, "user")
			})
		})

		Convey("When the upstream returns 404", func() {
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			})
			defer srv.Close()

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			_, err := c.Invoke(ctx, "no-such-model", []genai.Part{genai.Text("hi")})

			Convey("Then the error is an UpstreamError flagged as model-not-found", func() {
				var ue *genai.UpstreamError
				So(errors.As(err, &ue), ShouldBeTrue)
				So(ue.Status, ShouldEqual, http.StatusNotFound)
				So(genai.IsModelNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When the upstream returns a non-404 failure", func() {
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			})
			defer srv.Close()

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			_, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then the status and body are preserved", func() {
				var ue *genai.UpstreamError
				So(errors.As(err, &ue), ShouldBeTrue)
				So(ue.Status, ShouldEqual, http.StatusTooManyRequests)
				So(ue.Body, ShouldContainSubstring, "quota exceeded")
				So(genai.IsModelNotFound(err), ShouldBeFalse)
			})
		})

		Convey("When the upstream returns no candidates", func() {
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates": []}`))
			})
			defer srv.Close()

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			_, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then it fails with the empty-response error", func() {
				So(errors.Is(err, genai.ErrEmptyResponse), ShouldBeTrue)
			})
		})

		Convey("When the candidate carries only empty text", func() {
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(candidateBody("", "   ")))
			})
			defer srv.Close()

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			_, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then it never returns an empty string", func() {
				So(errors.Is(err, genai.ErrEmptyResponse), ShouldBeTrue)
			})
		})

		Convey("When the upstream is unreachable", func() {
			srv := upstream(func(w http.ResponseWriter, r *http.Request) {})
			srv.Close() // connection refused from here on

			c := genai.NewClient(genai.WithAPIKey("k"), genai.WithEndpoint(srv.URL))
			_, err := c.Invoke(ctx, "gemini-2.5-pro", []genai.Part{genai.Text("hi")})

			Convey("Then it fails with the transport error kind", func() {
				So(errors.Is(err, genai.ErrUpstreamUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestPartMarshal(t *testing.T) {
	Convey("Given content parts", t, func() {
		Convey("When marshaling a text part", func() {
			raw, err := json.Marshal(genai.Text("describe this"))
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, `{"text":"describe this"}`)
		})

		Convey("When marshaling an inline image part", func() {
			raw, err := json.Marshal(genai.InlineImage("image/png", []byte{1, 2, 3}))
			So(err, ShouldBeNil)

			var decoded map[string]map[string]string
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)
			So(decoded["inline_data"]["mime_type"], ShouldEqual, "image/png")
			So(decoded["inline_data"]["data"], ShouldEqual, "AQID")
		})
	})
}
