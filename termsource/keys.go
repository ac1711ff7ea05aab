package termsource

import (
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap holds the bindings the reader acts on itself.
type KeyMap struct {
	Quit key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

const esc = 0x1b

// Decode converts raw terminal input into key messages. Arrow-key escape
// sequences are recognized; other escape sequences decode byte by byte.
func Decode(b []byte) []tea.KeyMsg {
	var keys []tea.KeyMsg
	for len(b) > 0 {
		if b[0] == esc && len(b) >= 3 && b[1] == '[' {
			if t, ok := arrows[b[2]]; ok {
				keys = append(keys, tea.KeyMsg{Type: t})
				b = b[3:]
				continue
			}
		}
		if b[0] < 0x20 || b[0] == 0x7f {
			keys = append(keys, tea.KeyMsg{Type: tea.KeyType(b[0])})
			b = b[1:]
			continue
		}
		r, size := utf8.DecodeRune(b)
		keys = append(keys, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		b = b[size:]
	}
	return keys
}

var arrows = map[byte]tea.KeyType{
	'A': tea.KeyUp,
	'B': tea.KeyDown,
	'C': tea.KeyRight,
	'D': tea.KeyLeft,
}
