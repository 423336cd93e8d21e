package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/upb/andon-board/models"
)

// TimestampLayout is how notification times are rendered
const TimestampLayout = "02/01/2006 15:04:05"

// MaxMessageRunes is the Telegram sendMessage text limit
const MaxMessageRunes = 4096

const ellipsis = "…"

// Formatter renders call notifications in a fixed timezone
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter; a nil location means UTC
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Timestamp renders t in the formatter's timezone
func (f *Formatter) Timestamp(t time.Time) string {
	return t.In(f.loc).Format(TimestampLayout)
}

// CallCreated announces a new call
func (f *Formatter) CallCreated(call *models.Call) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>New call #%d</b>\n", call.Number)
	f.machineLines(&b, call)
	fmt.Fprintf(&b, "Division: %s\n", html.EscapeString(call.Route.Label()))
	fmt.Fprintf(&b, "Time: %s", f.Timestamp(call.CreatedAt))
	return b.String()
}

// CallResponded announces that someone is on the way
func (f *Formatter) CallResponded(call *models.Call, responderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Call #%d in progress</b>\n", call.Number)
	fmt.Fprintf(&b, "Responder: %s\n", html.EscapeString(responderName))
	f.machineLines(&b, call)
	fmt.Fprintf(&b, "Time: %s", f.Timestamp(timeOr(call.RespondedAt, time.Now())))
	return b.String()
}

// CallResolved announces a resolution with its report
func (f *Formatter) CallResolved(call *models.Call, resolverName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Call #%d resolved</b>\n", call.Number)
	if resolverName != "" {
		fmt.Fprintf(&b, "Resolved by: %s\n", html.EscapeString(resolverName))
	}
	f.machineLines(&b, call)
	footer := fmt.Sprintf("Time: %s", f.Timestamp(timeOr(call.ResolvedAt, time.Now())))
	if call.Report != nil {
		const label = "Report: \n"
		budget := MaxMessageRunes - utf8.RuneCountInString(b.String()) -
			utf8.RuneCountInString(footer) - utf8.RuneCountInString(label)
		fmt.Fprintf(&b, "Report: %s\n", escapeTruncated(call.Report.Content, budget))
	}
	b.WriteString(footer)
	return b.String()
}

// escapeTruncated HTML-escapes s and cuts it to at most limit runes, ending
// in an ellipsis when cut. Entities are never split.
func escapeTruncated(s string, limit int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}
	if limit < 1 {
		return ""
	}

	var b strings.Builder
	used := 0
	for _, r := range s {
		piece := html.EscapeString(string(r))
		n := utf8.RuneCountInString(piece)
		if used+n > limit-1 {
			break
		}
		b.WriteString(piece)
		used += n
	}
	b.WriteString(ellipsis)
	return b.String()
}

func (f *Formatter) machineLines(b *strings.Builder, call *models.Call) {
	machine := call.MachineName
	if call.MachineCode != "" {
		machine = fmt.Sprintf("%s (%s)", call.MachineName, call.MachineCode)
	}
	fmt.Fprintf(b, "Machine: %s\n", html.EscapeString(machine))
	fmt.Fprintf(b, "Location: %s\n", html.EscapeString(call.LocationName))
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
