package delivery

import (
	"testing"
	"time"

	"briefbot/internal/storage"
)

func TestRender(t *testing.T) {
	t.Parallel()
	a := storage.Article{
		ID:           "id",
		Title:        "Some headline",
		Link:         "http://x/1",
		ImageURL:     "http://x/pic.png",
		PublishedTs:  time.Unix(100, 0),
		DiscoveredTs: time.Unix(200, 0),
	}
	m := Render(a, "Next.ink")
	if m.Title != a.Title || m.URL != a.Link {
		t.Fatalf("render = %+v", m)
	}
	if m.ImageURL != a.ImageURL {
		t.Fatalf("ImageURL = %q", m.ImageURL)
	}
	if m.Footer != "Next.ink" {
		t.Fatalf("Footer = %q", m.Footer)
	}
}

func TestTitleColor(t *testing.T) {
	t.Parallel()
	c1 := titleColor("Some headline")
	if c1 != titleColor("Some headline") {
		t.Fatal("color must be deterministic")
	}
	if c1 < 0 || c1 >= 0xFFFFFF {
		t.Fatalf("color %#x out of range", c1)
	}
	if c1 == titleColor("Another headline") {
		t.Fatal("distinct titles should differ (sha1 collision unlikely)")
	}
}
