package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/primary-workspace/pulseai-hackshodh/internal/carescore"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/pkg/notion"
)

// titleProperty is the database's title column.
const titleProperty = "Name"

// SummaryStore is the read surface the Notion publisher needs.
type SummaryStore interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	LatestScore(ctx context.Context, userID int64) (*model.Score, error)
	ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error)
}

// Publisher writes care-summary pages to a Notion database.
type Publisher struct {
	client  notion.Client
	dbID    string
	store   SummaryStore
	nowFunc func() time.Time
}

func NewPublisher(client notion.Client, dbID string, store SummaryStore) *Publisher {
	return &Publisher{client: client, dbID: dbID, store: store, nowFunc: time.Now}
}

// PublishSummary creates one page per user per day: latest score headline
// properties plus a body with the top deviations and the 7-day trend.
// Publishing again on the same day refreshes the existing page's headline
// properties instead of creating a duplicate. Returns the page ID.
func (p *Publisher) PublishSummary(ctx context.Context, userID int64) (string, error) {
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return "", eris.Wrapf(err, "report: load user %d", userID)
	}
	name := fmt.Sprintf("user %d", userID)
	if user != nil && user.Name != "" {
		name = user.Name
	}

	score, err := p.store.LatestScore(ctx, userID)
	if err != nil {
		return "", eris.Wrapf(err, "report: latest score for user %d", userID)
	}
	if score == nil {
		return "", eris.Errorf("report: no score recorded for user %d", userID)
	}

	title := fmt.Sprintf("%s - %s", name, score.ComputedAt.UTC().Format("2006-01-02"))

	existing, err := notion.FindPageByTitle(ctx, p.client, p.dbID, titleProperty, title)
	if err != nil {
		return "", eris.Wrapf(err, "report: look up summary for user %d", userID)
	}
	if existing != "" {
		// Body blocks keep their first-publication content; only the
		// headline numbers move during the day.
		if _, err := p.client.UpdatePage(ctx, existing, &notionapi.PageUpdateRequest{
			Properties: headlineProperties(score),
		}); err != nil {
			return "", eris.Wrapf(err, "report: refresh summary %s", existing)
		}
		return existing, nil
	}

	week, err := p.store.ScoresSince(ctx, userID, p.nowFunc().Add(-7*24*time.Hour))
	if err != nil {
		return "", eris.Wrapf(err, "report: week of scores for user %d", userID)
	}

	page, err := p.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.dbID),
		},
		Properties: summaryProperties(title, score),
		Children:   summaryBlocks(score, week),
	})
	if err != nil {
		return "", eris.Wrapf(err, "report: publish summary for user %d", userID)
	}
	return string(page.ID), nil
}

// headlineProperties are the columns refreshed on every publish.
func headlineProperties(score *model.Score) notionapi.Properties {
	computed := notionapi.Date(score.ComputedAt)
	return notionapi.Properties{
		"CareScore": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: score.Aggregate,
		},
		"Status": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(score.Status)},
		},
		"Computed": notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &computed},
		},
	}
}

func summaryProperties(title string, score *model.Score) notionapi.Properties {
	props := headlineProperties(score)
	props[titleProperty] = notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: richText(title),
	}
	return props
}

func summaryBlocks(score *model.Score, week []model.Score) []notionapi.Block {
	blocks := []notionapi.Block{
		heading("Latest CareScore"),
		paragraph(fmt.Sprintf("%.1f (%s), computed %s.",
			score.Aggregate, score.Status, score.ComputedAt.UTC().Format("2006-01-02 15:04 MST"))),
		paragraph(score.Explanation),
	}

	if top := topDeviations(score.Deviations, 3); len(top) > 0 {
		blocks = append(blocks, heading("Top deviations"))
		for _, d := range top {
			blocks = append(blocks, bullet(fmt.Sprintf("%s: %.1f vs baseline %.1f (z-score %.1f)",
				model.DisplayName(d.Signal), d.Current, d.Baseline, d.ZScore)))
		}
	}

	blocks = append(blocks, heading("7-day trend"), paragraph(trendLine(week)))
	return blocks
}

// topDeviations returns up to n deviations ordered by absolute z-score.
func topDeviations(devs []model.Deviation, n int) []model.Deviation {
	sorted := make([]model.Deviation, len(devs))
	copy(sorted, devs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].ZScore) > math.Abs(sorted[j].ZScore)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func trendLine(week []model.Score) string {
	if len(week) == 0 {
		return "No scores recorded in the last 7 days."
	}
	var sum float64
	elevated := 0
	for _, s := range week {
		sum += s.Aggregate
		if s.Aggregate >= carescore.AlertThreshold {
			elevated++
		}
	}
	return fmt.Sprintf("%d scores in the last 7 days, %d at or above the alert threshold, average %.1f.",
		len(week), elevated, sum/float64(len(week)))
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

func heading(s string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
		Heading2:   notionapi.Heading{RichText: richText(s)},
	}
}

func paragraph(s string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: richText(s)},
	}
}

func bullet(s string) notionapi.Block {
	return &notionapi.BulletedListItemBlock{
		BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
		BulletedListItem: notionapi.ListItem{RichText: richText(s)},
	}
}
