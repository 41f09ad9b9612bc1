package digest

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
)

// Renderer turns an article into a chat payload:
//
//	{caption}\n{title}\n{link}
//
// The caption line is omitted when no captions are configured.
type Renderer struct {
	captions []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRenderer(captions []string, rnd *rand.Rand) *Renderer {
	cleaned := make([]string, 0, len(captions))
	for _, c := range captions {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Renderer{captions: cleaned, rnd: rnd}
}

func (r *Renderer) Render(article core.Article) string {
	title := strings.TrimSpace(article.Title)
	link := strings.TrimSpace(article.Link)
	if caption := r.caption(); caption != "" {
		return caption + "\n" + title + "\n" + link
	}
	return title + "\n" + link
}

func (r *Renderer) caption() string {
	if len(r.captions) == 0 {
		return ""
	}
	if len(r.captions) == 1 {
		return r.captions[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captions[r.rnd.Intn(len(r.captions))]
}
