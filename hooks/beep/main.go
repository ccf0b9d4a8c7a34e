// Package main provides a sample arrival hook. It beeps the terminal
// bell and echoes the event back as a log line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Event represents the input from the hook executor.
type Event struct {
	Event      string  `json:"event"`
	Payload    string  `json:"payload"`
	DistanceCM float64 `json:"distance_cm"`
}

// Reply represents the output to the hook executor.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	// Read event from stdin
	var ev Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		writeReply(Reply{Error: fmt.Sprintf("failed to decode event: %v", err)})
		return
	}

	if ev.Event != "arrival" {
		writeReply(Reply{Error: fmt.Sprintf("unexpected event %q", ev.Event)})
		return
	}

	// Stdout is reserved for the JSON reply, so the bell and the log
	// line both go to stderr.
	fmt.Fprintf(os.Stderr, "\aarrived at %q (%.1f cm)\n", ev.Payload, ev.DistanceCM)

	writeReply(Reply{Success: true})
}

func writeReply(r Reply) {
	json.NewEncoder(os.Stdout).Encode(r)
}
