package injector

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"postpilot/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage(map[string]any{"action": "injectPost", "text": "Hello world", "extra": true})
	require.NoError(t, err)
	assert.Equal(t, Message{Action: ActionInjectPost, Text: "Hello world"}, msg)

	_, err = DecodeMessage(map[string]any{"action": 42})
	assert.Error(t, err)
}

func TestDispatch_InjectPost(t *testing.T) {
	doc, err := dom.ParseString(editorPage)
	require.NoError(t, err)
	h := NewHandler(testInjector(t, 16), doc)

	var got []Response
	pending, err := h.Dispatch(context.Background(), map[string]any{
		"action": "injectPost",
		"text":   "Hello world",
	}, func(r Response) { got = append(got, r) })

	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, []Response{{Status: StatusSuccess}}, got)
}

func TestDispatch_InjectPostPending(t *testing.T) {
	doc, err := dom.ParseString(triggerOnlyPage)
	require.NoError(t, err)
	h := NewHandler(testInjector(t, 2), doc)

	result := make(chan Response, 1)
	pending, err := h.Dispatch(context.Background(), map[string]any{
		"action": "injectPost",
		"text":   "Hello world",
	}, func(r Response) { result <- r })

	require.NoError(t, err)
	assert.True(t, pending)
	select {
	case r := <-result:
		assert.Equal(t, StatusNotFound, r.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no deferred reply")
	}
}

func TestDispatch_GetPageContext(t *testing.T) {
	post := strings.Repeat("insight ", 10)
	doc, err := dom.ParseString(feedPage(post))
	require.NoError(t, err)
	h := NewHandler(testInjector(t, 16), doc)

	var got []Response
	pending, err := h.Dispatch(context.Background(), map[string]any{"action": "getPageContext"},
		func(r Response) { got = append(got, r) })

	require.NoError(t, err)
	assert.False(t, pending)
	require.Len(t, got, 1)
	assert.Equal(t, strings.TrimSpace(post), got[0].Context)
}

func TestDispatch_UnknownAction(t *testing.T) {
	doc, err := dom.ParseString(editorPage)
	require.NoError(t, err)
	h := NewHandler(testInjector(t, 16), doc)

	called := false
	pending, err := h.Dispatch(context.Background(), map[string]any{"action": "deletePost"},
		func(Response) { called = true })

	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, pending)
	assert.False(t, called)
	assert.Equal(t, 0, doc.Writes())
}

func TestResponse_JSON(t *testing.T) {
	b, err := json.Marshal(Response{Status: StatusNotFound})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_found"}`, string(b))

	b, err = json.Marshal(Response{Context: ContextPlaceholder})
	require.NoError(t, err)
	assert.JSONEq(t, `{"context":"No recent feed activity found."}`, string(b))
}

func TestMessage_Known(t *testing.T) {
	assert.True(t, Message{Action: ActionInjectPost}.Known())
	assert.True(t, Message{Action: ActionGetPageContext}.Known())
	assert.False(t, Message{Action: "publish"}.Known())
	assert.False(t, Message{}.Known())
}
