package session

import "time"

// Result is one transcription result. A non-final result supersedes the
// previous non-final result for the current turn; a final result is
// permanent.
type Result struct {
	Text      string    `json:"text"`
	IsFinal   bool      `json:"isFinal"`
	Timestamp time.Time `json:"timestamp"`
}

// serverMessage is an inbound JSON frame from the streaming endpoint. Type
// discriminates; fields not used by a given type are left zero.
type serverMessage struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
	Error      string `json:"error"`
}

// terminateMessage is the control frame sent on graceful close.
const terminateMessage = `{"type":"Terminate"}`
