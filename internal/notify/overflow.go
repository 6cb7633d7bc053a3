package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"infomentor-notifier/pkg/htmlutil"

	"github.com/mazen160/go-random"
)

// MaxTextLength is the longest push text sent as is, longer texts are cut and the full text
// is published as a page.
const MaxTextLength = 900

// Overflow publishes texts that are too long for a push message.
type Overflow struct {
	// Dir is the directory served at PublicBase.
	Dir        string
	PublicBase string
}

// Publish writes text as an html page with clickable links and returns its public url.
func (o Overflow) Publish(text string) (string, error) {
	name, err := random.String(24)
	if err != nil {
		return "", err
	}
	name += ".html"

	err = os.MkdirAll(o.Dir, 0755)
	if err != nil {
		return "", err
	}
	page := htmlutil.Page(htmlutil.Linkify(text))
	err = os.WriteFile(filepath.Join(o.Dir, name), []byte(page), 0644)
	if err != nil {
		return "", fmt.Errorf("write overflow page: %w", err)
	}
	return strings.TrimSuffix(o.PublicBase, "/") + "/" + name, nil
}

// Cap shortens text to MaxTextLength characters and links the published full text.
// Texts within the limit are returned unchanged.
func (o Overflow) Cap(text string) (string, error) {
	runes := []rune(text)
	if len(runes) <= MaxTextLength {
		return text, nil
	}
	link, err := o.Publish(text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s...\n\nfulltext saved at: %s", string(runes[:MaxTextLength]), link), nil
}
