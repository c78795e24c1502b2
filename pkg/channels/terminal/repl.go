package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompt is printed before every line read by the plain REPL.
const Prompt = "you: "

// runREPL reads lines from in until EOF or "exit". Replies are written to
// out by the channel's Send while submit is blocked.
func runREPL(in io.Reader, out io.Writer, submit func(string)) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		submit(text)
	}
}
