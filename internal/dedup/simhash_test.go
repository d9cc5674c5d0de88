package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHammingDistanceSymmetric(t *testing.T) {
	a := Simhash("взрыв на складе боеприпасов в белгородской области")
	b := Simhash("пожар на нефтебазе в брянской области")
	require.Equal(t, HammingDistance(a, b), HammingDistance(b, a))
}

func TestHammingDistanceBounds(t *testing.T) {
	a := Simhash("some fairly long piece of text about an incident")
	b := Simhash("a completely unrelated sentence about cooking dinner")
	d := HammingDistance(a, b)
	require.GreaterOrEqual(t, d, 0)
	require.LessOrEqual(t, d, 64)
}

func TestHammingDistanceZeroIffEqual(t *testing.T) {
	a := Simhash("взрыв на нефтебазе в брянской области сегодня ночью")
	require.Equal(t, 0, HammingDistance(a, a))

	b := Simhash("что-то совершенно другое про выборы и экономику")
	if a != b {
		require.NotEqual(t, 0, HammingDistance(a, b))
	}
}

func TestSimhashStableAcrossSmallEdit(t *testing.T) {
	base := "взрыв на складе боеприпасов в белгородской области привел к пожару"
	edited := "взрыв на складе боеприпасов в белгородской области привел к возгоранию"

	a := Simhash(base)
	b := Simhash(edited)
	require.LessOrEqual(t, HammingDistance(a, b), 12)
}

func TestSimhashEmptyTextIsZero(t *testing.T) {
	require.Equal(t, uint64(0), Simhash(""))
	require.Equal(t, uint64(0), Simhash("a an it to"))
}
