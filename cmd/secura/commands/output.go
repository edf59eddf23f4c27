package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/4abishai/secura/internal/domain"
)

var (
	timestampColor = color.New(color.FgHiBlack)
	usernameColor  = color.New(color.FgHiMagenta)
	warningColor   = color.New(color.FgHiYellow)
	pendingColor   = color.New(color.FgYellow)
	failedColor    = color.New(color.FgHiRed)
)

func init() {
	fd := os.Stdout.Fd()
	color.NoColor = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// printMessage writes one stored message as "[time] sender: body".
func printMessage(m domain.Message, layout string) {
	body := m.Body()
	switch {
	case m.Undecryptable:
		body = failedColor.Sprint(body)
	case m.Pending:
		body += pendingColor.Sprintf(" (pending %s)", m.TempID)
	}
	fmt.Printf("%s %s: %s\n",
		timestampColor.Sprintf("[%s]", m.Timestamp.Local().Format(layout)),
		usernameColor.Sprint(m.Sender),
		body,
	)
}

// printNotice writes a key-change notice.
func printNotice(n domain.KeyChangeNotification) {
	warningColor.Printf("! %s (%s)\n", n.Message, n.Timestamp.Local().Format(time.Kitchen))
}
