package vault

import (
	"fmt"
	"strings"

	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
)

// chatSystemPrompt frames the assistant and carries the retrieved
// memories. %s receives the memories section, possibly empty.
const chatSystemPrompt = `You are a knowledgeable and helpful AI assistant with access to personal memories.
You have stored memories that help you provide personalized responses.
Use these memories to understand the user's context, preferences, and past interactions.
Reference memories naturally when relevant, but don't explicitly mention having a memory system.

%s`

// extractionPrompt asks the model to distill a conversation into
// self-contained memories. %s receives the formatted conversation.
const extractionPrompt = `You are a memory extractor. Your task is to extract important information from conversations that should be remembered.

Guidelines:
- Extract facts, preferences, events, opinions, and important details
- Each memory should be self-contained and understandable on its own
- Rephrase content to be clear and concise
- Focus on information that would be useful to remember for future conversations
- Ignore trivial or transient information

Return your response as a JSON array of memory objects:
[
    {"memory": "User prefers Python for backend development", "type": "preference"},
    {"memory": "User has a project deadline on March 15th", "type": "event"}
]

Types can be: "fact", "preference", "event", "opinion", "procedure", "personal"

Only return the JSON array, no other text.

Conversation to extract from:
%s

JSON Output:`

// renderMemoriesSection formats retrieved memories for the system prompt.
// Returns the empty string when nothing was retrieved.
func renderMemoriesSection(results []memory.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Relevant Memories:")
	for _, r := range results {
		sb.WriteString("\n- ")
		sb.WriteString(r.Item.Memory)
	}
	return sb.String()
}

// renderConversation formats chat messages for the extraction prompt.
func renderConversation(messages []llm.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("[%s]: %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}
