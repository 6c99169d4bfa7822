// Package i18n holds the bot's user-facing strings.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type Key string

const (
	Vote     Key = "vote"
	Gulag    Key = "gulag"
	Forgive  Key = "forgive"
	Banned   Key = "banned"
	Kicked   Key = "kicked"
	Muted    Key = "muted"
	Forgiven Key = "forgiven"
	NoReply  Key = "no_reply"
	Already  Key = "already"
	Switched Key = "switched"
	Ended    Key = "ended"
	NotChat  Key = "not_chat"
	Help     Key = "help"
)

var translations = map[language.Tag]map[Key]string{
	language.English: {
		Vote:     "🗳 **Vote for punishment**\n\n👤 **Defendant:** %[2]s (`%[1]s`)\n\n_Choose action below_",
		Gulag:    "GULAG %d/%d",
		Forgive:  "Forgive %d/%d",
		Banned:   "⚖️ %[2]s (`%[1]s`) **banned**",
		Kicked:   "⚖️ %[2]s (`%[1]s`) **kicked**",
		Muted:    "⚖️ %[2]s (`%[1]s`) **muted for %[3]d min**",
		Forgiven: "⚖️ %[2]s (`%[1]s`) **forgiven**",
		NoReply:  "❌ **Reply to the message..**",
		Already:  "Already voted for this!",
		Switched: "Vote switched!",
		Ended:    "Vote ended!",
		NotChat:  "❌ **Only in chats!**",
		Help:     "Reply in a thread with `%[1]s` to put the thread author on trial.\n%[2]d votes decide, punishment: **%[3]s**.",
	},
	language.Russian: {
		Vote:     "🗳 **Голосование за наказание**\n\n👤 **Подсудимый:** %[2]s (`%[1]s`)\n\n_Выберите действие_",
		Gulag:    "ГУЛАГ %d/%d",
		Forgive:  "Простить %d/%d",
		Banned:   "⚖️ %[2]s (`%[1]s`) **забанен**",
		Kicked:   "⚖️ %[2]s (`%[1]s`) **кикнут**",
		Muted:    "⚖️ %[2]s (`%[1]s`) **замучен на %[3]d мин**",
		Forgiven: "⚖️ %[2]s (`%[1]s`) **прощён**",
		NoReply:  "❌ **Ответьте на сообщение..**",
		Already:  "Уже голосовали за это!",
		Switched: "Голос переключён!",
		Ended:    "Голосование окончено!",
		NotChat:  "❌ **Только в чатах!**",
		Help:     "Ответьте в треде командой `%[1]s`, чтобы отдать автора треда под суд.\nРешают %[2]d голосов, наказание: **%[3]s**.",
	},
}

var (
	supported = []language.Tag{language.English, language.Russian}
	matcher   = language.NewMatcher(supported)
	builder   = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, string(key), msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Localizer renders keyed strings in a single locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New picks the closest supported locale, falling back to English.
func New(locale string) *Localizer {
	tag := language.English
	if desired, err := language.Parse(locale); err == nil {
		_, idx, conf := matcher.Match(desired)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

func (l *Localizer) Language() language.Tag {
	return l.tag
}

func (l *Localizer) Text(key Key, args ...interface{}) string {
	return l.printer.Sprintf(string(key), args...)
}

// Keys lists every key known to the catalog.
func Keys() []Key {
	keys := make([]Key, 0, len(translations[language.English]))
	for k := range translations[language.English] {
		keys = append(keys, k)
	}
	return keys
}

// Has reports whether key has a translation for tag.
func Has(tag language.Tag, key Key) bool {
	_, ok := translations[tag][key]
	return ok
}
