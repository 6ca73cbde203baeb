package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Notion caps rich text content at 2000 characters per block.
const maxBlockLen = 2000

// PublishReport creates a page in the given database holding the rendered
// report. The markdown body is split into paragraph blocks line by line,
// with headings mapped to Notion heading blocks. Returns the created page
// URL.
func PublishReport(ctx context.Context, c Client, databaseID, title, body string) (string, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{
					Text: &notionapi.Text{Content: title},
				}},
			},
		},
		Children: bodyBlocks(body),
	}

	page, err := c.CreatePage(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "notion: publish report")
	}
	return page.URL, nil
}

// bodyBlocks converts markdown into a flat list of Notion blocks. Notion
// limits page creation to 100 children, so overflow is truncated with a
// trailing marker paragraph.
func bodyBlocks(body string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(blocks) >= 99 {
			blocks = append(blocks, paragraph("… report truncated, see exported file for the full version"))
			break
		}
		blocks = append(blocks, lineBlock(line))
	}
	return blocks
}

func lineBlock(line string) notionapi.Block {
	switch {
	case strings.HasPrefix(line, "### "):
		return &notionapi.Heading3Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading3},
			Heading3:   notionapi.Heading{RichText: richText(strings.TrimPrefix(line, "### "))},
		}
	case strings.HasPrefix(line, "## "):
		return &notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
			Heading2:   notionapi.Heading{RichText: richText(strings.TrimPrefix(line, "## "))},
		}
	case strings.HasPrefix(line, "# "):
		return &notionapi.Heading1Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading1},
			Heading1:   notionapi.Heading{RichText: richText(strings.TrimPrefix(line, "# "))},
		}
	case strings.HasPrefix(line, "- "):
		return &notionapi.BulletedListItemBlock{
			BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
			BulletedListItem: notionapi.ListItem{RichText: richText(strings.TrimPrefix(line, "- "))},
		}
	default:
		return paragraph(line)
	}
}

func paragraph(text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: richText(text)},
	}
}

func richText(text string) []notionapi.RichText {
	if len(text) > maxBlockLen {
		text = text[:maxBlockLen]
	}
	return []notionapi.RichText{{
		Text: &notionapi.Text{Content: text},
	}}
}
