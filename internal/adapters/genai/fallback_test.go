package genai_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/avian-io/roost/internal/adapters/genai"
	. "github.com/smartystreets/goconvey/convey"
)

// scriptedInvoker returns a canned result per model and records call order.
type scriptedInvoker struct {
	results map[string]scriptedResult
	calls   []string
}

type scriptedResult struct {
	text string
	err  error
}

func (s *scriptedInvoker) Invoke(_ context.Context, model string, _ []genai.Part) (string, error) {
	s.calls = append(s.calls, model)
	r, ok := s.results[model]
	if !ok {
		return "", &genai.UpstreamError{Status: http.StatusNotFound, Body: "unknown model"}
	}
	return r.text, r.err
}

func notFound() error {
	return &genai.UpstreamError{Status: http.StatusNotFound, Body: "no such model"}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	parts := []genai.Part{genai.Text("hello")}

	Convey("Given a resolver over a scripted invoker", t, func() {
		Convey("When the first two candidates are unknown and the third succeeds", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"model-a": {err: notFound()},
				"model-b": {err: notFound()},
				"model-c": {text: "answer"},
			}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-a", "model-b", "model-c"}))

			text, err := r.Generate(ctx, "", parts)

			Convey("Then the third candidate's output is returned", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "answer")
			})

			Convey("And the invoker was called exactly three times in order", func() {
				So(inv.calls, ShouldResemble, []string{"model-a", "model-b", "model-c"})
			})
		})

		Convey("When a candidate fails with a non-404 error", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"model-a": {err: &genai.UpstreamError{Status: http.StatusUnauthorized, Body: "bad key"}},
				"model-b": {text: "never reached"},
			}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-a", "model-b"}))

			_, err := r.Generate(ctx, "", parts)

			Convey("Then that error is surfaced immediately", func() {
				var ue *genai.UpstreamError
				So(errors.As(err, &ue), ShouldBeTrue)
				So(ue.Status, ShouldEqual, http.StatusUnauthorized)
			})

			Convey("And later candidates are never invoked", func() {
				So(inv.calls, ShouldResemble, []string{"model-a"})
			})
		})

		Convey("When every candidate is unknown upstream", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-a", "model-b"}))

			_, err := r.Generate(ctx, "", parts)

			Convey("Then the last 404 is returned", func() {
				So(genai.IsModelNotFound(err), ShouldBeTrue)
				So(inv.calls, ShouldResemble, []string{"model-a", "model-b"})
			})
		})

		Convey("When the requested model also appears in the fallback chain", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"model-x": {err: notFound()},
				"model-y": {text: "ok"},
			}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-x", "model-y"}))

			_, err := r.Generate(ctx, "model-x", parts)

			Convey("Then the duplicate is tried only once", func() {
				So(err, ShouldBeNil)
				So(inv.calls, ShouldResemble, []string{"model-x", "model-y"})
			})
		})

		Convey("When the requested model carries the provider prefix", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"model-x": {text: "ok"},
			}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-x"}))

			text, err := r.Generate(ctx, "models/model-x", parts)

			Convey("Then the prefix is stripped and de-duplicated", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "ok")
				So(inv.calls, ShouldResemble, []string{"model-x"})
			})
		})

		Convey("When a non-UpstreamError occurs", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"model-a": {err: genai.ErrEmptyResponse},
				"model-b": {text: "never"},
			}}
			r := genai.NewResolver(inv, genai.WithFallbackModels([]string{"model-a", "model-b"}))

			_, err := r.Generate(ctx, "", parts)

			Convey("Then it is terminal, not absorbed by the chain", func() {
				So(errors.Is(err, genai.ErrEmptyResponse), ShouldBeTrue)
				So(inv.calls, ShouldResemble, []string{"model-a"})
			})
		})

		Convey("When the requested model succeeds directly", func() {
			inv := &scriptedInvoker{results: map[string]scriptedResult{
				"custom": {text: "direct"},
			}}
			r := genai.NewResolver(inv)

			text, err := r.Generate(ctx, "custom", parts)

			Convey("Then no fallback candidate is tried", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "direct")
				So(inv.calls, ShouldResemble, []string{"custom"})
			})
		})
	})
}
