package prompt

import (
	_ "embed"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	//go:embed template/sales.txt
	salesRaw string

	//go:embed template/sqlagent.txt
	sqlAgentRaw string
)

// Sales returns the embedded sales-agent system prompt.
func Sales() string {
	return strings.TrimSpace(salesRaw)
}

// SQLAgent returns the embedded schema-bearing prompt for the admin channel.
func SQLAgent() string {
	return strings.TrimSpace(sqlAgentRaw)
}

// Loader serves a prompt with an optional on-disk override. The file is
// re-read whenever its mtime changes, so prompt edits land without a
// restart. With no path, or when the file is unreadable, the fallback is
// served.
type Loader struct {
	path     string
	fallback string

	mu     sync.Mutex
	cached string
	mtime  time.Time
}

func NewLoader(path, fallback string) *Loader {
	return &Loader{
		path:     strings.TrimSpace(path),
		fallback: strings.TrimSpace(fallback),
	}
}

func (l *Loader) Text() string {
	if l.path == "" {
		return l.fallback
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		if l.cached != "" {
			return l.cached
		}
		return l.fallback
	}

	if info.ModTime().Equal(l.mtime) && l.cached != "" {
		return l.cached
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("prompt override unreadable")
		if l.cached != "" {
			return l.cached
		}
		return l.fallback
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return l.fallback
	}

	l.cached = text
	l.mtime = info.ModTime()
	log.Info().Str("path", l.path).Int("chars", len(text)).Msg("prompt reloaded")
	return text
}
