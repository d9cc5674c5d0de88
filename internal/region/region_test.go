package region

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectSourceHintWins(t *testing.T) {
	d := New(nil)
	require.Equal(t, "Тверская область", d.Detect("Текст про Москву", "Заголовок", "Тверская область"))
}

func TestDetectFromTitleCity(t *testing.T) {
	d := New(nil)
	require.Equal(t, "Республика Татарстан", d.Detect("подробности происшествия", "Авария, город Казань", ""))
}

func TestDetectFromCustomMapping(t *testing.T) {
	d := New(map[string]string{"Сочи": "Краснодарский край"})
	require.Equal(t, "Краснодарский край", d.Detect("в Сочи произошла авария на теплосети", "Новости", ""))
}

func TestDetectFallbackRegex(t *testing.T) {
	d := New(nil)
	got := d.Detect("авария произошла в Тамбовская область вчера вечером", "", "")
	require.Equal(t, "Тамбовская область", got)
}

func TestDetectNoMatch(t *testing.T) {
	d := New(nil)
	require.Equal(t, "", d.Detect("ничего не произошло", "обычный день", ""))
}
