package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// readMessages returns the user messages for a run: one per argument, or one
// per non-blank line of inputFile ("-" for stdin). It returns nil when
// neither is given and an error when the given input holds only blanks.
func readMessages(args []string, inputFile string, stdin io.Reader) ([]string, error) {
	if inputFile != "" && len(args) > 0 {
		return nil, fmt.Errorf("message args and -F are mutually exclusive")
	}
	if inputFile == "" {
		messages := make([]string, 0, len(args))
		for _, arg := range args {
			if strings.TrimSpace(arg) == "" {
				continue
			}
			messages = append(messages, arg)
		}
		if len(messages) == 0 && len(args) > 0 {
			return nil, fmt.Errorf("no messages in arguments")
		}
		if len(messages) == 0 {
			return nil, nil
		}
		return messages, nil
	}

	var data []byte
	var err error
	if inputFile == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
	}
	messages := splitLines(string(data))
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages in %s", describeInput(inputFile))
	}
	return messages, nil
}

func splitLines(value string) []string {
	var lines []string
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func describeInput(inputFile string) string {
	if inputFile == "-" {
		return "stdin"
	}
	return inputFile
}
