package trial

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const promptText = "Enable noticed trial and stop the active daemon? [y/N]: "

// PromptConfirm returns a confirm callback reading a y/N answer from in.
// It declines without asking when in is not a terminal.
func PromptConfirm(in *os.File, out io.Writer) func() (bool, error) {
	return func() (bool, error) {
		if !term.IsTerminal(int(in.Fd())) {
			return false, nil
		}
		return askYesNo(in, out)
	}
}

func askYesNo(in io.Reader, out io.Writer) (bool, error) {
	if _, err := fmt.Fprint(out, promptText); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
