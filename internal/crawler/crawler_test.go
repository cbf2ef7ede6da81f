package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x, y, w, h float64) *BoundingBox {
	return &BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestIndexAssignsSequentialIDsOverVisibleSet(t *testing.T) {
	cands := []candidate{
		{tag: "a", text: "Home", box: box(0, 0, 40, 20), visible: true},
		{tag: "button", text: "hidden", box: box(0, 0, 40, 20), visible: false},
		{tag: "input", text: "", box: box(0, 30, 100, 20), visible: true},
		{tag: "div", text: "zero box", box: box(5, 5, 0, 0), visible: true},
		{tag: "textarea", text: "notes", box: nil, visible: true},
		{tag: "button", text: "  Submit  ", box: box(0, 60, 80, 30), visible: true},
	}

	elements, handles := index(cands)

	require.Len(t, elements, 3)
	assert.Len(t, handles, 3)
	for i, el := range elements {
		assert.Equal(t, i, el.ID)
	}
	assert.Equal(t, "a", elements[0].Tag)
	assert.Equal(t, "input", elements[1].Tag)
	assert.Equal(t, "Submit", elements[2].Text)
}

func TestIndexTruncatesText(t *testing.T) {
	long := strings.Repeat("é", MaxTextLength+25)
	elements, _ := index([]candidate{{tag: "a", text: long, box: box(0, 0, 1, 1), visible: true}})

	require.Len(t, elements, 1)
	assert.Equal(t, MaxTextLength, len([]rune(elements[0].Text)))
}

func TestIndexEmpty(t *testing.T) {
	elements, handles := index(nil)
	assert.Empty(t, elements)
	assert.Empty(t, handles)
}

func TestHandleOutOfRange(t *testing.T) {
	var obs *Observation
	_, ok := obs.Handle(0)
	assert.False(t, ok)

	obs = &Observation{}
	_, ok = obs.Handle(-1)
	assert.False(t, ok)
	_, ok = obs.Handle(3)
	assert.False(t, ok)
}

const fixturePage = `<!doctype html>
<html><head><title>Fixture</title></head>
<body style="margin:0">
  <a href="#one" style="display:block;width:100px;height:20px">One</a>
  <button style="display:none">Hidden</button>
  <input id="name" style="display:block;width:200px;height:20px">
  <div role="button" style="visibility:hidden;width:50px;height:20px">Invisible role</div>
  <textarea style="display:block;width:200px;height:40px"></textarea>
  <div style="height:3000px"></div>
</body></html>`

func launchFixture(t *testing.T) *Browser {
	b, _ := launchFixtureServer(t)
	return b
}

func launchFixtureServer(t *testing.T) (*Browser, string) {
	t.Helper()
	if _, found := launcher.LookPath(); !found {
		t.Skip("no Chromium binary available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fixturePage))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	b, err := Launch(ctx, srv.URL, Options{Width: 800, Height: 600, Headless: true})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, srv.URL
}

func TestObserveFixture(t *testing.T) {
	b := launchFixture(t)

	obs, err := b.Observe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Fixture", obs.Title)
	assert.Equal(t, 800, obs.PageInfo.ViewportWidth)
	assert.Equal(t, 600, obs.PageInfo.ViewportHeight)
	assert.Greater(t, obs.PageInfo.PageHeight, 600)
	require.NotEmpty(t, obs.Tabs)

	tags := make([]string, 0, len(obs.Elements))
	for i, el := range obs.Elements {
		assert.Equal(t, i, el.ID)
		assert.NotNil(t, el.BoundingBox)
		tags = append(tags, el.Tag)
	}
	assert.Equal(t, []string{"a", "input", "textarea"}, tags)

	shot, err := b.Screenshot(context.Background())
	require.NoError(t, err)
	assert.True(t, len(shot) > 2 && shot[0] == 0xFF && shot[1] == 0xD8, "expected JPEG bytes")
}

func TestTabLifecycle(t *testing.T) {
	b := launchFixture(t)
	ctx := context.Background()

	before, err := b.Observe(ctx)
	require.NoError(t, err)
	open := len(before.Tabs)

	require.NoError(t, b.NewTab(ctx))
	obs, err := b.Observe(ctx)
	require.NoError(t, err)
	assert.Len(t, obs.Tabs, open+1)
	assert.Equal(t, "about:blank", obs.URL)

	err = b.SwitchTab(ctx, 7)
	assert.ErrorIs(t, err, ErrTabOutOfRange)

	require.NoError(t, b.CloseTab(ctx))
	obs, err = b.Observe(ctx)
	require.NoError(t, err)
	assert.Len(t, obs.Tabs, open)
}

func TestSwitchTabFollowsOpenOrder(t *testing.T) {
	b, base := launchFixtureServer(t)
	ctx := context.Background()

	for _, path := range []string{"/first", "/second"} {
		require.NoError(t, b.NewTab(ctx))
		require.NoError(t, b.Page().Navigate(base+path))
		require.NoError(t, b.Settle(ctx))
	}

	obs, err := b.Observe(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(obs.Tabs), 3)
	last := len(obs.Tabs) - 1
	assert.Equal(t, base+"/first", obs.Tabs[last-1].URL)
	assert.Equal(t, base+"/second", obs.Tabs[last].URL)

	for _, i := range []int{last - 1, last, last - 1} {
		require.NoError(t, b.SwitchTab(ctx, i))
		assert.Equal(t, obs.Tabs[i].URL, b.Page().MustInfo().URL)

		again, err := b.Observe(ctx)
		require.NoError(t, err)
		assert.Equal(t, obs.Tabs, again.Tabs, "switching must not reorder tabs")
	}
}
