package dom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedPage = `<html><body>
<div id="feed">
  <button class="share-box-feed-entry__trigger">Start a post</button>
  <div class="ql-editor" contenteditable="true"><p><br></p></div>
  <script>var ignored = "script text";</script>
</div>
</body></html>`

func TestStatic_QueryFirstMatch(t *testing.T) {
	doc, err := ParseString(feedPage)
	require.NoError(t, err)

	el, err := doc.Query(".ql-editor")
	require.NoError(t, err)
	require.NotNil(t, el)

	missing, err := doc.Query(".not-there")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatic_QueryAttributeSubstring(t *testing.T) {
	doc, err := ParseString(`<body><button aria-label="Start a post, opens editor">x</button></body>`)
	require.NoError(t, err)

	el, err := doc.Query(`button[aria-label*="Start a post"]`)
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestStatic_InvalidSelector(t *testing.T) {
	doc, err := ParseString(feedPage)
	require.NoError(t, err)

	_, err = doc.Query("div[")
	assert.Error(t, err)
}

func TestStatic_TextSkipsScript(t *testing.T) {
	doc, err := ParseString(feedPage)
	require.NoError(t, err)

	el, err := doc.Query("#feed")
	require.NoError(t, err)
	text, err := el.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "Start a post")
	assert.NotContains(t, text, "script text")
}

func TestStatic_SetHTMLAndDispatch(t *testing.T) {
	doc, err := ParseString(feedPage)
	require.NoError(t, err)

	el, err := doc.Query(".ql-editor")
	require.NoError(t, err)
	require.NoError(t, el.SetHTML("<p>Hello world</p>"))
	require.NoError(t, el.Dispatch(EventInput))
	require.NoError(t, el.Dispatch(EventBlur))

	se := el.(*StaticElement)
	assert.Equal(t, "<p>Hello world</p>", se.InnerHTML())
	assert.Equal(t, []string{EventInput, EventBlur}, se.Events())
	assert.Equal(t, 1, doc.Writes())

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), `<div class="ql-editor" contenteditable="true"><p>Hello world</p></div>`)
}

func TestStatic_ClickHookMayMutate(t *testing.T) {
	doc, err := ParseString(`<html><body><button id="go">Write a post</button></body></html>`)
	require.NoError(t, err)

	doc.OnClick(func(d *Static, _ *StaticElement) {
		require.NoError(t, d.Append("body", `<div class="editor-content" contenteditable="true"></div>`))
	})

	btn, err := doc.Query("#go")
	require.NoError(t, err)
	require.NoError(t, btn.Click())
	assert.Equal(t, 1, doc.Clicks())

	editor, err := doc.Query(`.editor-content[contenteditable="true"]`)
	require.NoError(t, err)
	assert.NotNil(t, editor)
}

func TestStatic_QueryAllDocumentOrder(t *testing.T) {
	doc, err := ParseString(`<body><span>a</span><div><span>b</span></div><span>c</span></body>`)
	require.NoError(t, err)

	all, err := doc.QueryAll("span")
	require.NoError(t, err)
	require.Len(t, all, 3)

	var got []string
	for _, el := range all {
		text, err := el.Text()
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
