package crossref

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/pkg/errors"
)

func publishedStories(n int) []*entity.Story {
	stories := make([]*entity.Story, 0, n)
	for i := 1; i <= n; i++ {
		stories = append(stories, &entity.Story{
			ID:      fmt.Sprintf("s%d", i),
			Status:  entity.StoryStatusPublished,
			Content: "Milly waved",
		})
	}
	return stories
}

func TestRebuildAll_Idempotent(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: publishedStories(7)}
	rebuilder := NewRebuilder(newTestIndexer(mentions, personCatalog("Milly")), mentions, stories, 2, 3)
	ctx := context.Background()

	first, err := rebuilder.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, first.Processed)
	assert.Equal(t, 7, first.IndexedMentions)
	assert.Zero(t, first.Failed)

	// 重复执行结果一致
	second, err := rebuilder.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.IndexedMentions, second.IndexedMentions)
	assert.Equal(t, 2, mentions.deleteAlls)
}

func TestRebuildAll_SkipsOnlyDraftStories(t *testing.T) {
	mentions := newFakeMentionRepo()
	all := publishedStories(3)
	all = append(all, &entity.Story{ID: "d1", Status: entity.StoryStatusDraft, Content: "Milly waved"})
	stories := &fakeStoryRepo{stories: all}
	rebuilder := NewRebuilder(newTestIndexer(mentions, personCatalog("Milly")), mentions, stories, 2, 10)

	summary, err := rebuilder.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Zero(t, mentions.count("d1"))
}

func TestRebuildAll_SingleStoryFailureIsSkipped(t *testing.T) {
	mentions := newFakeMentionRepo()
	mentions.failStories = map[string]bool{"s2": true}
	stories := &fakeStoryRepo{stories: publishedStories(4)}
	rebuilder := NewRebuilder(newTestIndexer(mentions, personCatalog("Milly")), mentions, stories, 2, 10)

	summary, err := rebuilder.RebuildAll(context.Background())

	// 单故事失败不冒泡为整体错误
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"s2"}, summary.FailedStoryIDs)
	assert.Equal(t, 3, summary.IndexedMentions)
}

func TestRebuildAll_RejectsConcurrentRun(t *testing.T) {
	mentions := newFakeMentionRepo()
	stories := &fakeStoryRepo{stories: publishedStories(2)}
	rebuilder := NewRebuilder(newTestIndexer(mentions, personCatalog("Milly")), mentions, stories, 1, 10)

	rebuilder.mu.Lock()
	rebuilder.running = true
	rebuilder.mu.Unlock()

	_, err := rebuilder.RebuildAll(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConflict))
}
