package vault

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
)

// fakeLLM records every Generate call and returns a canned reply.
type fakeLLM struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestVault(t *testing.T, model llm.LLM) *Vault {
	t.Helper()
	v, err := New(memory.NewLexicalStore(), model)
	require.NoError(t, err)
	require.NoError(t, v.Open(context.Background()))
	return v
}

func seedMemories(t *testing.T, v *Vault) {
	t.Helper()
	_, err := v.Add(context.Background(), []string{
		"The project budget is $50,000",
		"Deploys go out every Friday afternoon",
		"Standup happens at 9am daily",
	}, memory.Metadata{Type: "fact"})
	require.NoError(t, err)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestVaultAddAndSearch(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, nil)
	seedMemories(t, v)

	n, err := v.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := v.Search(ctx, "project budget", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "The project budget is $50,000", results[0].Item.Memory)
}

func TestChatInjectsMemories(t *testing.T) {
	ctx := context.Background()
	model := &fakeLLM{reply: "The budget is $50,000."}
	v := newTestVault(t, model)
	seedMemories(t, v)

	reply, err := v.Chat(ctx, "what is the project budget", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The budget is $50,000.", reply)

	require.Len(t, model.calls, 1)
	msgs := model.calls[0]
	require.NotEmpty(t, msgs)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "## Relevant Memories:")
	assert.Contains(t, msgs[0].Content, "The project budget is $50,000")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "what is the project budget"}, msgs[len(msgs)-1])

	// Both turns land in the session history.
	require.Equal(t, 2, v.History().Len())
}

func TestChatCarriesHistory(t *testing.T) {
	ctx := context.Background()
	model := &fakeLLM{reply: "ok"}
	v := newTestVault(t, model)
	seedMemories(t, v)

	_, err := v.Chat(ctx, "what is the project budget", ChatOptions{})
	require.NoError(t, err)
	_, err = v.Chat(ctx, "and when do we deploy", ChatOptions{})
	require.NoError(t, err)

	// system + prior user/assistant turns + new user message.
	second := model.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleUser, second[1].Role)
	assert.Equal(t, "what is the project budget", second[1].Content)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
}

func TestChatExcludeHistory(t *testing.T) {
	ctx := context.Background()
	model := &fakeLLM{reply: "ok"}
	v := newTestVault(t, model)
	seedMemories(t, v)

	_, err := v.Chat(ctx, "what is the project budget", ChatOptions{})
	require.NoError(t, err)
	_, err = v.Chat(ctx, "and when do we deploy", ChatOptions{ExcludeHistory: true})
	require.NoError(t, err)

	second := model.calls[1]
	require.Len(t, second, 2)
	assert.Equal(t, llm.RoleSystem, second[0].Role)
	assert.Equal(t, llm.RoleUser, second[1].Role)
}

func TestChatCustomSystemPrompt(t *testing.T) {
	ctx := context.Background()
	model := &fakeLLM{reply: "ok"}
	v := newTestVault(t, model)
	seedMemories(t, v)

	_, err := v.Chat(ctx, "what is the project budget", ChatOptions{
		SystemPrompt: "Answer tersely.\n%s",
	})
	require.NoError(t, err)

	system := model.calls[0][0].Content
	assert.True(t, strings.HasPrefix(system, "Answer tersely."))
	assert.Contains(t, system, "The project budget is $50,000")
}

func TestChatWithoutModel(t *testing.T) {
	v := newTestVault(t, nil)
	_, err := v.Chat(context.Background(), "hello", ChatOptions{})
	assert.Error(t, err)
}

func TestChatModelFailure(t *testing.T) {
	model := &fakeLLM{err: fmt.Errorf("rate limited")}
	v := newTestVault(t, model)
	seedMemories(t, v)

	_, err := v.Chat(context.Background(), "what is the project budget", ChatOptions{})
	require.Error(t, err)
	// Failed turns stay out of the history.
	assert.Zero(t, v.History().Len())
}

func TestClearChatHistory(t *testing.T) {
	model := &fakeLLM{reply: "ok"}
	v := newTestVault(t, model)
	seedMemories(t, v)

	_, err := v.Chat(context.Background(), "what is the project budget", ChatOptions{})
	require.NoError(t, err)
	v.ClearChatHistory()
	assert.Zero(t, v.History().Len())
}

func TestRenderMemoriesSection(t *testing.T) {
	assert.Empty(t, renderMemoriesSection(nil))

	section := renderMemoriesSection([]memory.SearchResult{
		{Item: &memory.Item{Memory: "first"}},
		{Item: &memory.Item{Memory: "second"}},
	})
	assert.Equal(t, "## Relevant Memories:\n- first\n- second", section)
}
