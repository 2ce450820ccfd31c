package delivery

import (
	"crypto/sha1"
	"math/big"

	"briefbot/internal/storage"
	"briefbot/internal/transport"
)

var colorMod = big.NewInt(0xFFFFFF)

// Render turns one queued article into a message embed. The color is a
// stable hash of the title, cosmetic only.
func Render(a storage.Article, footer string) transport.Message {
	return transport.Message{
		Title:    a.Title,
		URL:      a.Link,
		Color:    titleColor(a.Title),
		ImageURL: a.ImageURL,
		Footer:   footer,
	}
}

func titleColor(title string) int {
	sum := sha1.Sum([]byte(title))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, colorMod).Int64())
}
