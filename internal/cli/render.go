package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/models"
)

// printer writes a conversation to a terminal as it changes. Answer text
// is printed as it streams; an element is never printed twice.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	theme   Theme
	color   bool
	printed map[uuid.UUID]int

	// answersOnly skips fixed assistant messages such as prompts.
	answersOnly bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:       w,
		theme:   defaultTheme,
		color:   isTerminal(w),
		printed: make(map[uuid.UUID]int),
	}
}

// attach subscribes the printer to conv. The returned function detaches it.
func (p *printer) attach(conv *chat.Conversation) func() {
	return conv.Subscribe(p.handle)
}

func (p *printer) handle(ev chat.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case chat.ElementAppended:
		p.appended(ev.Element)
	case chat.ElementUpdated:
		p.updated(ev.Element, ev.Final)
	case chat.ElementRemoved:
		delete(p.printed, ev.Element.ID)
	}
}

func (p *printer) appended(e chat.Element) {
	switch e.Kind {
	case chat.KindAssistantMessage:
		if e.Text == nil {
			// An answer about to stream.
			p.printed[e.ID] = 0
			return
		}
		if p.answersOnly {
			return
		}
		fmt.Fprintln(p.w, p.style(p.theme.statusStyle().Render, *e.Text))
	case chat.KindResultList:
		p.results(e)
	}
}

func (p *printer) updated(e chat.Element, final bool) {
	n, ok := p.printed[e.ID]
	if !ok {
		return
	}
	text := e.TextOr("")
	if len(text) > n {
		fmt.Fprint(p.w, text[n:])
		p.printed[e.ID] = len(text)
	}
	if !final {
		return
	}

	fmt.Fprintln(p.w)
	if names := entityNames(e.Entities); names != "" {
		fmt.Fprintln(p.w, p.style(p.theme.hintStyle().Render, "Mentions: "+names))
	}
	if e.QuestionID != nil {
		fmt.Fprintln(p.w, p.style(p.theme.hintStyle().Render,
			fmt.Sprintf("question %d · rate with 'corbo feedback %d --positive'", *e.QuestionID, *e.QuestionID)))
	}
	delete(p.printed, e.ID)
}

func (p *printer) results(e chat.Element) {
	if e.Results == nil {
		return
	}
	if len(e.Results.Stories) == 0 {
		fmt.Fprintln(p.w, p.style(p.theme.hintStyle().Render, "No stories found."))
		return
	}
	for _, s := range e.Results.Stories {
		if s.Story == nil {
			continue
		}
		date := s.Story.CreatedTime.Format("2006-01-02")
		fmt.Fprintf(p.w, "  • %s  %s\n", p.style(p.theme.hintStyle().Render, date), firstLine(s.Story.Content))
	}
}

func (p *printer) style(render func(...string) string, s string) string {
	if !p.color {
		return s
	}
	return render(s)
}

func entityNames(entities []models.Entity) string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.Name != nil && *e.Name != "" {
			names = append(names, *e.Name)
		}
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
