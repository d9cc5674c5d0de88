package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckExactURLDuplicate(t *testing.T) {
	d := New(DefaultThreshold, DefaultCacheWindow)
	now := time.Now()

	_, isDup, hash := d.Check("Взрыв на складе", "подробности инцидента", "https://example.com/a", now)
	require.False(t, isDup)
	d.Add(1, "https://example.com/a", hash, now)

	dupOf, isDup, _ := d.Check("Другой заголовок", "другой текст", "https://example.com/a", now)
	require.True(t, isDup)
	require.Equal(t, int64(1), dupOf)
}

func TestCheckSimhashNearDuplicate(t *testing.T) {
	d := New(DefaultThreshold, DefaultCacheWindow)
	now := time.Now()

	title := "Взрыв на складе боеприпасов в Белгородской области"
	text := "По предварительным данным произошло возгорание на объекте"
	_, isDup, hash := d.Check(title, text, "https://a.example/1", now)
	require.False(t, isDup)
	d.Add(2, "https://a.example/1", hash, now)

	dupOf, isDup, _ := d.Check(title+" сегодня", text+" вечером", "https://b.example/2", now)
	require.True(t, isDup)
	require.Equal(t, int64(2), dupOf)
}

func TestCheckDistinctItemsNotDuplicate(t *testing.T) {
	d := New(DefaultThreshold, DefaultCacheWindow)
	now := time.Now()

	_, isDup, hash := d.Check("Взрыв на нефтебазе в Брянской области", "пожар локализован", "https://a.example/1", now)
	require.False(t, isDup)
	d.Add(3, "https://a.example/1", hash, now)

	dupOf, isDup, _ := d.Check("Выборы губернатора назначены на сентябрь", "кандидаты зарегистрированы", "https://c.example/3", now)
	require.False(t, isDup)
	require.Zero(t, dupOf)
}

func TestCheckEvictsOutsideWindow(t *testing.T) {
	d := New(DefaultThreshold, time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	now := time.Now()

	d.Add(4, "https://a.example/1", Simhash("взрыв на складе боеприпасов"), past)

	dupOf, isDup, _ := d.Check("Взрыв на складе боеприпасов", "подробности", "https://a.example/1", now)
	require.False(t, isDup, "entry older than cache window must be evicted")
	require.Zero(t, dupOf)
}
