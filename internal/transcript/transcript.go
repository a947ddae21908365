// Package transcript keeps the ordered turns of a single chat conversation.
package transcript

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the conversation. Turns are values and are never
// modified after they are appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered sequence of turns for one conversation. It is
// owned by a single session and is not safe for concurrent use.
type Transcript struct {
	turns []Turn
}

// New returns a transcript holding one system turn when systemPrompt is
// non-empty, and an empty transcript otherwise.
func New(systemPrompt string) *Transcript {
	t := &Transcript{turns: make([]Turn, 0, 8)}
	if systemPrompt != "" {
		t.turns = append(t.turns, Turn{Role: RoleSystem, Content: systemPrompt})
	}
	return t
}

// AppendUser adds a user turn; text is stored as given, empty included.
func (t *Transcript) AppendUser(text string) {
	t.turns = append(t.turns, Turn{Role: RoleUser, Content: text})
}

// AppendAssistant adds an assistant turn holding a complete reply.
func (t *Transcript) AppendAssistant(text string) {
	t.turns = append(t.turns, Turn{Role: RoleAssistant, Content: text})
}

// Reset drops every turn except the first system turn, if there is one.
func (t *Transcript) Reset() {
	system, ok := t.System()
	turns := make([]Turn, 0, 8)
	if ok {
		turns = append(turns, system)
	}
	t.turns = turns
}

// System returns the first system turn.
func (t *Transcript) System() (Turn, bool) {
	for _, turn := range t.turns {
		if turn.Role == RoleSystem {
			return turn, true
		}
	}
	return Turn{}, false
}

// Snapshot returns a copy of the turns; callers may modify it freely.
func (t *Transcript) Snapshot() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns, system turn included.
func (t *Transcript) Len() int {
	return len(t.turns)
}
