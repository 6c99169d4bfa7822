package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestEveryKeyTranslated(t *testing.T) {
	for _, tag := range supported {
		for _, key := range Keys() {
			assert.True(t, Has(tag, key), "%s missing %q", tag, key)
		}
	}
}

func TestLocaleMatching(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"en", language.English},
		{"ru", language.Russian},
		{"ru-RU", language.Russian},
		{"", language.English},
		{"not a locale", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.locale).Language())
		})
	}
}

func TestText(t *testing.T) {
	en := New("en")
	assert.Equal(t, "GULAG 2/5", en.Text(Gulag, 2, 5))
	assert.Equal(t, "Forgive 0/5", en.Text(Forgive, 0, 5))
	assert.Equal(t, "⚖️ Boris (`u1`) **muted for 60 min**", en.Text(Muted, "u1", "Boris", 60))

	ru := New("ru")
	assert.Equal(t, "ГУЛАГ 1/3", ru.Text(Gulag, 1, 3))
	assert.Equal(t, "Голосование окончено!", ru.Text(Ended))
}
