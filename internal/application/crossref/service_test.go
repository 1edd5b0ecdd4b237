package crossref

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/pkg/errors"
)

// fakeEntityCatalog 目录仓储桩：missing 中的实体视为不存在
type fakeEntityCatalog struct {
	missing map[string]bool
}

func (f *fakeEntityCatalog) ListByType(_ context.Context, _ entity.EntityType) ([]*entity.CatalogEntity, error) {
	return nil, nil
}

func (f *fakeEntityCatalog) GetByID(_ context.Context, t entity.EntityType, id string) (*entity.CatalogEntity, error) {
	if f.missing[id] {
		return nil, nil
	}
	return &entity.CatalogEntity{ID: id, Type: t, Name: "stub"}, nil
}

// fakeResultCache 记录失效键的缓存桩；读穿永远未命中直接回源
type fakeResultCache struct {
	invalidated []string
}

func (f *fakeResultCache) GetOrLoad(_ context.Context, _ string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	data, err := loader()
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func (f *fakeResultCache) Invalidate(_ context.Context, keys ...string) error {
	f.invalidated = append(f.invalidated, keys...)
	return nil
}

func newTestCrossrefService(mentions *fakeMentionRepo, stories *fakeStoryRepo) *Service {
	return newTestCrossrefServiceWithCache(mentions, stories, nil)
}

func newTestCrossrefServiceWithCache(mentions *fakeMentionRepo, stories *fakeStoryRepo, cache ResultCache) *Service {
	ix := newTestIndexer(mentions, personCatalog("Milly"))
	hooks := NewHookRunner(NewMentionIndexHook(ix))
	return NewService(ix, hooks, stories, mentions, &fakeEntityCatalog{}, cache, time.Minute)
}

func TestService_StoryMentionsUnknownStory(t *testing.T) {
	svc := newTestCrossrefService(newFakeMentionRepo(), &fakeStoryRepo{})

	_, err := svc.StoryMentions(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoryNotFound))
}

func TestService_ReprocessUsesStoredContent(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: []*entity.Story{
		{ID: "s1", Status: entity.StoryStatusDraft, Content: "Milly waved"},
	}}
	svc := newTestCrossrefService(mentions, stories)

	// 不传正文时用库中存储的正文；草稿也允许手工重建
	count, err := svc.Reprocess(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, mentions.count("s1"))
}

func TestService_ReprocessWithSuppliedContent(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: []*entity.Story{
		{ID: "s1", Status: entity.StoryStatusPublished, Content: "no names here"},
	}}
	svc := newTestCrossrefService(mentions, stories)

	count, err := svc.Reprocess(context.Background(), "s1", "Milly waved at Milly")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_BacklinksLimitClamped(t *testing.T) {
	mentions := newFakeMentionRepo()
	svc := newTestCrossrefService(mentions, &fakeStoryRepo{})
	ctx := context.Background()

	_, err := svc.Backlinks(ctx, entity.EntityTypePerson, "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, 20, mentions.lastBacklinkLimit)

	_, err = svc.Backlinks(ctx, entity.EntityTypePerson, "p1", 500)
	require.NoError(t, err)
	assert.Equal(t, 100, mentions.lastBacklinkLimit)
}

func TestService_LatestBacklinkEmpty(t *testing.T) {
	svc := newTestCrossrefService(newFakeMentionRepo(), &fakeStoryRepo{})

	link, err := svc.LatestBacklink(context.Background(), entity.EntityTypePerson, "p1")

	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestService_ContentUpdatedRefreshesOnlyPublished(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: []*entity.Story{
		{ID: "draft", Status: entity.StoryStatusDraft, Content: "Milly waved"},
		{ID: "pub", Status: entity.StoryStatusPublished, Content: "Milly waved"},
	}}
	svc := newTestCrossrefService(mentions, stories)
	ctx := context.Background()

	require.NoError(t, svc.ContentUpdated(ctx, "draft", "Milly waved"))
	assert.Zero(t, mentions.count("draft"))

	require.NoError(t, svc.ContentUpdated(ctx, "pub", "Milly waved"))
	assert.Equal(t, 1, mentions.count("pub"))
}

func TestService_BacklinksUnknownEntity(t *testing.T) {
	mentions := newFakeMentionRepo()
	ix := newTestIndexer(mentions, personCatalog("Milly"))
	hooks := NewHookRunner(NewMentionIndexHook(ix))
	catalog := &fakeEntityCatalog{missing: map[string]bool{"ghost": true}}
	svc := NewService(ix, hooks, &fakeStoryRepo{}, mentions, catalog, nil, time.Minute)

	_, err := svc.Backlinks(context.Background(), entity.EntityTypePerson, "ghost", 10)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeEntityNotFound))

	_, err = svc.Stats(context.Background(), entity.EntityTypePerson, "ghost")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeEntityNotFound))
}

func TestService_TrendingClampsArguments(t *testing.T) {
	mentions := newFakeMentionRepo()
	mentions.trending = []*entity.TrendingEntity{
		{EntityType: entity.EntityTypePerson, EntityID: "p1", EntityName: "Milly", MentionCount: 3},
	}
	svc := newTestCrossrefService(mentions, &fakeStoryRepo{})
	ctx := context.Background()

	// 默认窗口 7 天、默认条数 10
	got, err := svc.Trending(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Milly", got[0].EntityName)
	assert.Equal(t, 10, mentions.lastTrendingLimit)
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), mentions.lastTrendingSince, time.Minute)

	// 超大条数夹到 50
	_, err = svc.Trending(ctx, time.Hour, 500)
	require.NoError(t, err)
	assert.Equal(t, 50, mentions.lastTrendingLimit)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), mentions.lastTrendingSince, time.Minute)
}

func TestService_ReprocessInvalidatesStatsCache(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: []*entity.Story{
		{ID: "s1", Status: entity.StoryStatusPublished, Content: "Milly waved"},
	}}
	cache := &fakeResultCache{}
	svc := newTestCrossrefServiceWithCache(mentions, stories, cache)

	_, err := svc.Reprocess(context.Background(), "s1", "")
	require.NoError(t, err)

	assert.Contains(t, cache.invalidated, "crossref:stats:person:p1")
}
