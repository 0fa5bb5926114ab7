package report

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

type fakeNotionClient struct {
	queryResp *notionapi.DatabaseQueryResponse
	queryErr  error
	createErr error
	updateErr error

	queried []*notionapi.DatabaseQueryRequest
	created []*notionapi.PageCreateRequest
	updated map[string]*notionapi.PageUpdateRequest
}

func (f *fakeNotionClient) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queried = append(f.queried, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryResp != nil {
		return f.queryResp, nil
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (f *fakeNotionClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &notionapi.Page{ID: "page-new"}, nil
}

func (f *fakeNotionClient) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.updated == nil {
		f.updated = make(map[string]*notionapi.PageUpdateRequest)
	}
	f.updated[pageID] = req
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

type fakeSummaryStore struct {
	user    *model.User
	userErr error
	latest  *model.Score
	week    []model.Score
}

func (f *fakeSummaryStore) GetUser(context.Context, int64) (*model.User, error) {
	return f.user, f.userErr
}

func (f *fakeSummaryStore) LatestScore(context.Context, int64) (*model.Score, error) {
	return f.latest, nil
}

func (f *fakeSummaryStore) ScoresSince(context.Context, int64, time.Time) ([]model.Score, error) {
	return f.week, nil
}

func summaryFixture() *fakeSummaryStore {
	computed := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return &fakeSummaryStore{
		user: &model.User{ID: 7, Name: "Dana"},
		latest: &model.Score{
			ID:          "score-1",
			UserID:      7,
			ComputedAt:  computed,
			Aggregate:   54.5,
			Status:      model.StatusModerate,
			Explanation: "Your health signals show notable changes that warrant attention.",
			Deviations: []model.Deviation{
				{Signal: model.SignalHeartRate, Current: 96, Baseline: 70, ZScore: 2.1},
				{Signal: model.SignalHRV, Current: 22, Baseline: 50, ZScore: -3.4},
			},
		},
		week: []model.Score{
			{Aggregate: 54.5},
			{Aggregate: 28.0},
			{Aggregate: 41.0},
		},
	}
}

func newTestPublisher(client *fakeNotionClient, store *fakeSummaryStore) *Publisher {
	p := NewPublisher(client, "db-care", store)
	p.nowFunc = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPublishSummary_CreatesPage(t *testing.T) {
	client := &fakeNotionClient{}
	p := newTestPublisher(client, summaryFixture())

	id, err := p.PublishSummary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "page-new", id)
	require.Len(t, client.created, 1)
	assert.Empty(t, client.updated)

	req := client.created[0]
	assert.Equal(t, notionapi.DatabaseID("db-care"), req.Parent.DatabaseID)

	title := req.Properties["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "Dana - 2026-03-10", title.Title[0].Text.Content)

	score := req.Properties["CareScore"].(notionapi.NumberProperty)
	assert.InDelta(t, 54.5, score.Number, 1e-9)

	status := req.Properties["Status"].(notionapi.SelectProperty)
	assert.Equal(t, "moderate", status.Select.Name)

	require.NotEmpty(t, req.Children)
	first := req.Children[0].(*notionapi.Heading2Block)
	assert.Equal(t, "Latest CareScore", first.Heading2.RichText[0].Text.Content)
}

func TestPublishSummary_BodyContent(t *testing.T) {
	client := &fakeNotionClient{}
	p := newTestPublisher(client, summaryFixture())

	_, err := p.PublishSummary(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, client.created, 1)

	var bullets, paragraphs []string
	for _, b := range client.created[0].Children {
		switch blk := b.(type) {
		case *notionapi.BulletedListItemBlock:
			bullets = append(bullets, blk.BulletedListItem.RichText[0].Text.Content)
		case *notionapi.ParagraphBlock:
			paragraphs = append(paragraphs, blk.Paragraph.RichText[0].Text.Content)
		}
	}

	// HRV has the larger absolute z-score, so it leads the deviation list.
	require.Len(t, bullets, 2)
	assert.Equal(t, "heart rate variability: 22.0 vs baseline 50.0 (z-score -3.4)", bullets[0])
	assert.Equal(t, "heart rate: 96.0 vs baseline 70.0 (z-score 2.1)", bullets[1])

	assert.Contains(t, paragraphs, "54.5 (moderate), computed 2026-03-10 08:00 UTC.")
	assert.Contains(t, paragraphs, "3 scores in the last 7 days, 2 at or above the alert threshold, average 41.2.")
}

func TestPublishSummary_RefreshesSameDay(t *testing.T) {
	client := &fakeNotionClient{
		queryResp: &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: "page-existing"}},
		},
	}
	p := newTestPublisher(client, summaryFixture())

	id, err := p.PublishSummary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "page-existing", id)
	assert.Empty(t, client.created)

	req := client.updated["page-existing"]
	require.NotNil(t, req)
	score := req.Properties["CareScore"].(notionapi.NumberProperty)
	assert.InDelta(t, 54.5, score.Number, 1e-9)
	_, hasTitle := req.Properties["Name"]
	assert.False(t, hasTitle)
}

func TestPublishSummary_NoScore(t *testing.T) {
	client := &fakeNotionClient{}
	p := newTestPublisher(client, &fakeSummaryStore{user: &model.User{ID: 7, Name: "Dana"}})

	_, err := p.PublishSummary(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no score recorded")
	assert.Empty(t, client.created)
}

func TestPublishSummary_UnknownUserFallsBackToID(t *testing.T) {
	client := &fakeNotionClient{}
	st := summaryFixture()
	st.user = nil
	p := newTestPublisher(client, st)

	_, err := p.PublishSummary(context.Background(), 9)
	require.NoError(t, err)

	title := client.created[0].Properties["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "user 9 - 2026-03-10", title.Title[0].Text.Content)
}

func TestTrendLine_Empty(t *testing.T) {
	assert.Equal(t, "No scores recorded in the last 7 days.", trendLine(nil))
}

func TestTopDeviations(t *testing.T) {
	devs := []model.Deviation{
		{Signal: "a", ZScore: 1.0},
		{Signal: "b", ZScore: -4.0},
		{Signal: "c", ZScore: 2.5},
		{Signal: "d", ZScore: 3.0},
	}

	top := topDeviations(devs, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Signal)
	assert.Equal(t, "d", top[1].Signal)
	assert.Equal(t, "c", top[2].Signal)

	// Input slice keeps its original order.
	assert.Equal(t, "a", devs[0].Signal)
}
