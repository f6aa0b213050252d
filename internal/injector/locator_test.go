package injector

import (
	"testing"

	"postpilot/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrOf(t *testing.T, el dom.Element, name string) string {
	t.Helper()
	require.NotNil(t, el)
	v, _ := el.(*dom.StaticElement).Attr(name)
	return v
}

func TestFindEditor_Order(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "quill wins over textbox",
			page: `<div id="tb" contenteditable="true" role="textbox"></div><div id="ql" class="ql-editor"></div>`,
			want: "ql",
		},
		{
			name: "textbox role",
			page: `<div id="plain" contenteditable="true"></div><div id="tb" contenteditable="true" role="textbox"></div>`,
			want: "tb",
		},
		{
			name: "editor content class",
			page: `<div id="ec" class="editor-content" contenteditable="true"></div>`,
			want: "ec",
		},
	}

	loc := NewLocator(DefaultProbes(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.ParseString(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, attrOf(t, loc.FindEditor(doc), "id"))
		})
	}
}

func TestFindEditor_ContentEditableWithoutRoleIsNotEnough(t *testing.T) {
	doc, err := dom.ParseString(`<div contenteditable="true">comment box</div>`)
	require.NoError(t, err)
	assert.Nil(t, NewLocator(DefaultProbes(), nil).FindEditor(doc))
}

func TestFindTrigger_Chain(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "class marker before aria",
			page: `<button id="aria" aria-label="Start a post, share your thoughts">x</button>
<div id="cls" class="share-box-feed-entry__trigger">Start a post</div>`,
			want: "cls",
		},
		{
			name: "class markers in document order",
			page: `<button id="muted" class="artdeco-button--muted inline-flex align-items-center">Go</button>
<div id="cls" class="share-box-feed-entry__trigger">x</div>`,
			want: "muted",
		},
		{
			name: "aria substring",
			page: `<button id="create" aria-label="Create a post in this group">+</button>`,
			want: "create",
		},
		{
			name: "phrase fallback is case insensitive",
			page: `<a>Start a post</a><span id="span">  WRITE A POST here </span>`,
			want: "span",
		},
		{
			name: "phrase on artdeco div",
			page: `<div id="d" class="artdeco-button">Start a post</div>`,
			want: "d",
		},
	}

	loc := NewLocator(DefaultProbes(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.ParseString(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, attrOf(t, loc.FindTrigger(doc), "id"))
		})
	}
}

func TestFindTrigger_None(t *testing.T) {
	doc, err := dom.ParseString(`<a href="/feed">Start a post</a><p>Write a post</p>`)
	require.NoError(t, err)
	assert.Nil(t, NewLocator(DefaultProbes(), nil).FindTrigger(doc))
}

func TestLocator_BadSelectorIsAMiss(t *testing.T) {
	doc, err := dom.ParseString(`<div class="ql-editor"></div>`)
	require.NoError(t, err)

	probes := DefaultProbes()
	probes.Editor = []string{"div[[", ".ql-editor"}
	assert.NotNil(t, NewLocator(probes, nil).FindEditor(doc))
}

func TestProbes_Merge(t *testing.T) {
	base := DefaultProbes()

	merged := base.Merge(Probes{Editor: []string{"#composer"}, FeedLimit: 3})
	assert.Equal(t, []string{"#composer"}, merged.Editor)
	assert.Equal(t, 3, merged.FeedLimit)
	assert.Equal(t, base.TriggerClasses, merged.TriggerClasses)
	assert.Equal(t, base.MinContextLength, merged.MinContextLength)

	assert.Equal(t, base, base.Merge(Probes{}))
}
