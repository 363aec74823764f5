// Command parse-message runs the bonus-drop parser over a single message and
// prints the resulting record as JSON, or why the message was rejected.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"bonus-drops/internal/models"
	"bonus-drops/internal/parser"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("parse-message", flag.ContinueOnError)
	flags.SetOutput(stderr)

	file := flags.String("file", "", "read the message from this file instead of stdin")
	chatID := flags.Int64("chat", 0, "chat id of the message")
	messageID := flags.Int("message", 1, "message id within the chat")
	senderID := flags.Int64("sender", 0, "sender user id")
	date := flags.Int64("date", 0, "message unix time (default now)")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	in := stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open %s: %v\n", *file, err)
			return 1
		}
		defer f.Close()
		in = f
	}

	text, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read message: %v\n", err)
		return 1
	}

	if *date == 0 {
		*date = time.Now().Unix()
	}

	msg := models.RawMessage{
		Text:      string(text),
		ChatID:    *chatID,
		MessageID: *messageID,
		SenderID:  *senderID,
		Date:      *date,
	}

	if !parser.IsValidBonusCodeMessage(msg.Text) {
		fmt.Fprintln(stderr, "Not a bonus drop: title, reward or code line missing")
		return 3
	}

	code, err := parser.New().Parse(msg)
	if err != nil {
		fmt.Fprintf(stderr, "Rejected: %v\n", err)
		return 3
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(code); err != nil {
		fmt.Fprintf(stderr, "Failed to encode result: %v\n", err)
		return 1
	}
	return 0
}
