package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avian-io/roost/internal/adapters/identity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()

	Convey("Given an HTTP verifier", t, func() {
		Convey("When the auth service recognizes the token", func() {
			var gotAuth, gotKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotKey = r.Header.Get("apikey")
				_, _ = w.Write([]byte(`{"id": "user-1", "email": "owner@example.com"}`))
			}))
			defer srv.Close()

			v := identity.NewHTTPVerifier(srv.URL, "anon-key")
			user, err := v.Verify(ctx, "tok-123")

			Convey("Then the identity is returned", func() {
				So(err, ShouldBeNil)
				So(user.ID, ShouldEqual, "user-1")
				So(user.Email, ShouldEqual, "owner@example.com")
			})

			Convey("And the credentials ride the request headers", func() {
				So(gotAuth, ShouldEqual, "Bearer tok-123")
				So(gotKey, ShouldEqual, "anon-key")
			})
		})

		Convey("When the auth service rejects the token", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad token", http.StatusUnauthorized)
			}))
			defer srv.Close()

			v := identity.NewHTTPVerifier(srv.URL, "anon-key")
			_, err := v.Verify(ctx, "bad")

			Convey("Then it fails with ErrUnauthorized", func() {
				So(errors.Is(err, identity.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the token is empty", func() {
			v := identity.NewHTTPVerifier("http://auth.invalid", "anon-key")
			_, err := v.Verify(ctx, "")

			Convey("Then it fails without a network call", func() {
				So(errors.Is(err, identity.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the response carries no user id", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"email": "ghost@example.com"}`))
			}))
			defer srv.Close()

			v := identity.NewHTTPVerifier(srv.URL, "anon-key")
			_, err := v.Verify(ctx, "tok")

			Convey("Then it is treated as unauthorized", func() {
				So(errors.Is(err, identity.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the auth service errors", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusInternalServerError)
			}))
			defer srv.Close()

			v := identity.NewHTTPVerifier(srv.URL, "anon-key")
			_, err := v.Verify(ctx, "tok")

			Convey("Then the failure is not ErrUnauthorized", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, identity.ErrUnauthorized), ShouldBeFalse)
			})
		})
	})
}
