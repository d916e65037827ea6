package imagery_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avian-io/roost/internal/adapters/genai"
	"github.com/avian-io/roost/internal/adapters/imagery"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeBlobStore is an in-order in-memory Store double tracking deletions.
type fakeBlobStore struct {
	order   []string
	objects map[string][]byte
	deleted []string
	listErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) put(name string, data []byte) {
	s.order = append(s.order, name)
	s.objects[name] = data
}

func (s *fakeBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var names []string
	for _, name := range s.order {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *fakeBlobStore) Download(_ context.Context, name string) ([]byte, error) {
	data, ok := s.objects[name]
	if !ok {
		return nil, errors.New("missing object")
	}
	return data, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, name string) error {
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *fakeBlobStore) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	s.put(name, data)
	return "https://blobs.test/" + name, nil
}

func imagePartMime(p genai.Part) string {
	raw, _ := json.Marshal(p)
	var decoded map[string]map[string]string
	_ = json.Unmarshal(raw, &decoded)
	return decoded["inline_data"]["mime_type"]
}

func TestFromURL(t *testing.T) {
	ctx := context.Background()

	Convey("Given an image fetcher", t, func() {
		store := newFakeBlobStore()
		f := imagery.NewFetcher(store)

		Convey("When the URL serves an image", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
			}))
			defer srv.Close()

			part, err := f.FromURL(ctx, srv.URL)

			Convey("Then an inline image part is returned with its media type", func() {
				So(err, ShouldBeNil)
				So(part.IsImage(), ShouldBeTrue)
				So(imagePartMime(part), ShouldEqual, "image/png")
			})
		})

		Convey("When the content type is not an image media type", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write([]byte("bytes"))
			}))
			defer srv.Close()

			part, err := f.FromURL(ctx, srv.URL)

			Convey("Then it is coerced to the default image type, not rejected", func() {
				So(err, ShouldBeNil)
				So(imagePartMime(part), ShouldEqual, "image/jpeg")
			})
		})

		Convey("When the body is empty", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			_, err := f.FromURL(ctx, srv.URL)

			Convey("Then it fails with the fetch error kind", func() {
				So(errors.Is(err, imagery.ErrImageFetch), ShouldBeTrue)
			})
		})

		Convey("When the server is unreachable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			_, err := f.FromURL(ctx, srv.URL)

			Convey("Then it fails with the fetch error kind", func() {
				So(errors.Is(err, imagery.ErrImageFetch), ShouldBeTrue)
			})
		})

		Convey("When the server returns a failure status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone", http.StatusGone)
			}))
			defer srv.Close()

			_, err := f.FromURL(ctx, srv.URL)

			Convey("Then it fails with the fetch error kind", func() {
				So(errors.Is(err, imagery.ErrImageFetch), ShouldBeTrue)
			})
		})
	})
}

func TestFromDevice(t *testing.T) {
	ctx := context.Background()

	Convey("Given a device with five stored images", t, func() {
		store := newFakeBlobStore()
		for i := 1; i <= 5; i++ {
			store.put(fmt.Sprintf("pi-7/img-%d.jpg", i), []byte{0xff, 0xd8, 0xff, byte(i)})
		}
		f := imagery.NewFetcher(store)

		Convey("When fetching at most two images", func() {
			parts, err := f.FromDevice(ctx, "pi-7", 2)

			Convey("Then the first two in store order are returned", func() {
				So(err, ShouldBeNil)
				So(parts, ShouldHaveLength, 2)
			})

			Convey("And the remaining three are deleted", func() {
				So(store.deleted, ShouldResemble, []string{
					"pi-7/img-3.jpg",
					"pi-7/img-4.jpg",
					"pi-7/img-5.jpg",
				})
			})
		})

		Convey("When maxCount exceeds the stored images", func() {
			parts, err := f.FromDevice(ctx, "pi-7", 10)

			Convey("Then all images are returned and nothing is deleted", func() {
				So(err, ShouldBeNil)
				So(parts, ShouldHaveLength, 5)
				So(store.deleted, ShouldBeEmpty)
			})
		})

		Convey("When the device has no stored images", func() {
			parts, err := f.FromDevice(ctx, "pi-other", 3)

			Convey("Then an empty result is returned without error", func() {
				So(err, ShouldBeNil)
				So(parts, ShouldBeEmpty)
			})
		})

		Convey("When listing fails", func() {
			store.listErr = errors.New("boom")
			_, err := f.FromDevice(ctx, "pi-7", 2)

			Convey("Then the fetch error kind is surfaced", func() {
				So(errors.Is(err, imagery.ErrImageFetch), ShouldBeTrue)
			})
		})
	})
}
