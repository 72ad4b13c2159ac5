package audiotag

import (
	"bytes"
	"strings"

	"github.com/dhowden/tag"
)

// Reader pulls display metadata from uploaded audio. Untagged files are
// normal, so every failure degrades to empty strings.
type Reader struct{}

func New() Reader { return Reader{} }

func (Reader) Read(data []byte) (title, artist string) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(m.Title()), strings.TrimSpace(m.Artist())
}
