package notion

import (
	"context"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestPublishReport(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	var captured *notionapi.PageCreateRequest
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*notionapi.PageCreateRequest)
		}).
		Return(&notionapi.Page{ID: "page-1", URL: "https://notion.so/page-1"}, nil)

	url, err := PublishReport(ctx, mc, "db-123", "Acme Widget Research", "# Report\n\nSummary line\n- first feature\n- second feature")
	require.NoError(t, err)
	assert.Equal(t, "https://notion.so/page-1", url)

	require.NotNil(t, captured)
	assert.Equal(t, notionapi.DatabaseID("db-123"), captured.Parent.DatabaseID)
	// heading, paragraph, two bullets; blank line dropped
	require.Len(t, captured.Children, 4)
	assert.IsType(t, &notionapi.Heading1Block{}, captured.Children[0])
	assert.IsType(t, &notionapi.ParagraphBlock{}, captured.Children[1])
	assert.IsType(t, &notionapi.BulletedListItemBlock{}, captured.Children[2])
	mc.AssertExpectations(t)
}

func TestBodyBlocksTruncation(t *testing.T) {
	t.Parallel()

	lines := make([]string, 150)
	for i := range lines {
		lines[i] = "line"
	}
	blocks := bodyBlocks(strings.Join(lines, "\n"))
	assert.Len(t, blocks, 100)

	last, ok := blocks[99].(*notionapi.ParagraphBlock)
	require.True(t, ok)
	assert.Contains(t, last.Paragraph.RichText[0].Text.Content, "truncated")
}

func TestRichTextClampsLongLines(t *testing.T) {
	t.Parallel()

	rt := richText(strings.Repeat("x", 5000))
	assert.Len(t, rt[0].Text.Content, maxBlockLen)
}
