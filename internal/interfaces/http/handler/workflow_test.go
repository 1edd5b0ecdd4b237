package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-crossref-api/internal/application/catalog"
	"story-crossref-api/internal/application/crossref"
	"story-crossref-api/internal/application/workflow"
	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
)

type memStoryRepo struct {
	stories map[string]*entity.Story
}

func (m *memStoryRepo) GetByID(_ context.Context, id string) (*entity.Story, error) {
	return m.stories[id], nil
}

func (m *memStoryRepo) ListPublished(_ context.Context, _ repository.Pagination) ([]*entity.Story, error) {
	return nil, nil
}

func (m *memStoryRepo) UpdateStatus(_ context.Context, id string, status entity.StoryStatus, publishedAt *time.Time) error {
	s := m.stories[id]
	s.Status = status
	if publishedAt != nil {
		s.PublishedAt = publishedAt
	}
	return nil
}

type memMentionRepo struct {
	byStory map[string][]*entity.Mention
}

func (m *memMentionRepo) ReplaceForStory(_ context.Context, storyID string, mentions []*entity.Mention) error {
	m.byStory[storyID] = mentions
	return nil
}

func (m *memMentionRepo) DeleteForStory(_ context.Context, storyID string) error {
	delete(m.byStory, storyID)
	return nil
}

func (m *memMentionRepo) DeleteAll(_ context.Context) error {
	m.byStory = map[string][]*entity.Mention{}
	return nil
}

func (m *memMentionRepo) ListByStory(_ context.Context, storyID string) ([]*entity.Mention, error) {
	return m.byStory[storyID], nil
}

func (m *memMentionRepo) Backlinks(_ context.Context, _ entity.EntityType, _ string, _ int) ([]*entity.Backlink, error) {
	return nil, nil
}

func (m *memMentionRepo) Stats(_ context.Context, _ entity.EntityType, _ string) (*entity.MentionStats, error) {
	return &entity.MentionStats{}, nil
}

func (m *memMentionRepo) Trending(_ context.Context, _ time.Time, _ int) ([]*entity.TrendingEntity, error) {
	return nil, nil
}

type memTransitionRepo struct {
	appended []*entity.WorkflowTransition
}

func (m *memTransitionRepo) Append(_ context.Context, t *entity.WorkflowTransition) error {
	m.appended = append(m.appended, t)
	return nil
}

func (m *memTransitionRepo) ListByStory(_ context.Context, storyID string) ([]*entity.WorkflowTransition, error) {
	var out []*entity.WorkflowTransition
	for _, t := range m.appended {
		if t.StoryID == storyID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memCatalogRepo struct{}

func (memCatalogRepo) ListByType(_ context.Context, t entity.EntityType) ([]*entity.CatalogEntity, error) {
	if t == entity.EntityTypePerson {
		return []*entity.CatalogEntity{{ID: "p1", Type: t, Name: "Milly"}}, nil
	}
	return nil, nil
}

func (memCatalogRepo) GetByID(_ context.Context, t entity.EntityType, id string) (*entity.CatalogEntity, error) {
	if t == entity.EntityTypePerson && id == "p1" {
		return &entity.CatalogEntity{ID: id, Type: t, Name: "Milly"}, nil
	}
	return nil, nil
}

type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// newTestEngine 在内存仓储上装配完整服务栈
func newTestEngine(stories *memStoryRepo, gate workflow.PublishGate) *gin.Engine {
	gin.SetMode(gin.TestMode)

	mentions := &memMentionRepo{byStory: map[string][]*entity.Mention{}}
	transitions := &memTransitionRepo{}

	detector := crossref.NewDetector(crossref.DetectorConfig{ContextRadius: 50, MinTermLength: 2})
	indexer := crossref.NewIndexer(detector, catalog.NewLoader(memCatalogRepo{}), mentions)
	hooks := crossref.NewHookRunner(crossref.NewMentionIndexHook(indexer))

	wfSvc := workflow.NewService(stories, transitions, passTx{}, gate, hooks, true)
	crSvc := crossref.NewService(indexer, hooks, stories, mentions, memCatalogRepo{}, nil, time.Minute)

	wf := NewWorkflowHandler(wfSvc)
	cr := NewCrossrefHandler(crSvc)

	r := gin.New()
	r.POST("/v1/stories/:sid/workflow/transition", wf.Transition)
	r.POST("/v1/stories/:sid/workflow/publish", wf.Publish)
	r.GET("/v1/stories/:sid/workflow/history", wf.History)
	r.GET("/v1/workflow/can-publish", wf.CanPublish)
	r.GET("/v1/workflow/transitions", wf.Edges)
	r.GET("/v1/entities/:type/:eid/backlinks", cr.Backlinks)
	r.GET("/v1/trending/entities", cr.Trending)
	r.GET("/v1/stories/:sid/mentions", cr.StoryMentions)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getPath(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTransitionEndpoint_InvalidEdge(t *testing.T) {
	stories := &memStoryRepo{stories: map[string]*entity.Story{
		"s1": {ID: "s1", Status: entity.StoryStatusDraft, Content: "Milly waved"},
	}}
	r := newTestEngine(stories, workflow.NewMemoryGate(10, time.Hour))

	w := postJSON(r, "/v1/stories/s1/workflow/transition", map[string]string{"to_status": "published"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, entity.StoryStatusDraft, stories.stories["s1"].Status)
}

func TestTransitionEndpoint_UnknownStory(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := postJSON(r, "/v1/stories/missing/workflow/transition", map[string]string{"to_status": "review"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishEndpoint_RateLimitedWithRetryAfter(t *testing.T) {
	stories := &memStoryRepo{stories: map[string]*entity.Story{
		"s1": {ID: "s1", Status: entity.StoryStatusApproved, Content: "Milly waved"},
	}}
	gate := workflow.NewMemoryGate(1, time.Hour)
	_, _, err := gate.Allow(context.Background())
	require.NoError(t, err)

	r := newTestEngine(stories, gate)
	w := postJSON(r, "/v1/stories/s1/workflow/publish", map[string]string{})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, entity.StoryStatusApproved, stories.stories["s1"].Status)
}

func TestPublishEndpoint_IndexesMentions(t *testing.T) {
	stories := &memStoryRepo{stories: map[string]*entity.Story{
		"s1": {ID: "s1", Status: entity.StoryStatusApproved, Content: "Milly waved"},
	}}
	r := newTestEngine(stories, workflow.NewMemoryGate(10, time.Hour))

	w := postJSON(r, "/v1/stories/s1/workflow/publish", map[string]string{})
	require.Equal(t, http.StatusOK, w.Code)

	// 发布钩子已同步建好提及
	mw := getPath(r, "/v1/stories/s1/mentions")
	require.Equal(t, http.StatusOK, mw.Code)

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(mw.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Milly", resp.Data[0]["entity_name"])
}

func TestCanPublishEndpoint(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := getPath(r, "/v1/workflow/can-publish")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Allowed bool `json:"allowed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Allowed)
}

func TestEdgesEndpoint(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := getPath(r, "/v1/workflow/transitions")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 5)
}

func TestBacklinksEndpoint_InvalidEntityType(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := getPath(r, "/v1/entities/planet/x1/backlinks")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBacklinksEndpoint_UnknownEntity(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := getPath(r, "/v1/entities/person/ghost/backlinks")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrendingEndpoint(t *testing.T) {
	r := newTestEngine(&memStoryRepo{stories: map[string]*entity.Story{}}, workflow.NewMemoryGate(10, time.Hour))

	w := getPath(r, "/v1/trending/entities?limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	// 非法窗口参数直接拒绝
	w = getPath(r, "/v1/trending/entities?window=yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
