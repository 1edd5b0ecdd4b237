package crossref

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-crossref-api/internal/domain/entity"
)

// recordingHook 记录触发过的事件
type recordingHook struct {
	name   string
	events []string
	fail   bool
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnPublished(_ context.Context, storyID, _ string) error {
	h.events = append(h.events, "published:"+storyID)
	if h.fail {
		return fmt.Errorf("hook %s failed", h.name)
	}
	return nil
}

func (h *recordingHook) OnUnpublished(_ context.Context, storyID string) error {
	h.events = append(h.events, "unpublished:"+storyID)
	if h.fail {
		return fmt.Errorf("hook %s failed", h.name)
	}
	return nil
}

func (h *recordingHook) OnUpdated(_ context.Context, storyID, _ string, _ entity.StoryStatus) error {
	h.events = append(h.events, "updated:"+storyID)
	if h.fail {
		return fmt.Errorf("hook %s failed", h.name)
	}
	return nil
}

func TestHookRunner_FailureIsolation(t *testing.T) {
	failing := &recordingHook{name: "failing", fail: true}
	healthy := &recordingHook{name: "healthy"}
	runner := NewHookRunner(failing, healthy)
	ctx := context.Background()

	// 前一个钩子失败不影响后一个
	runner.FirePublished(ctx, "s1", "body")
	assert.Equal(t, []string{"published:s1"}, failing.events)
	assert.Equal(t, []string{"published:s1"}, healthy.events)

	runner.FireUnpublished(ctx, "s1")
	assert.Contains(t, healthy.events, "unpublished:s1")
}

func TestMentionIndexHook_PublishAndUnpublish(t *testing.T) {
	mentions := newFakeMentionRepo()
	hook := NewMentionIndexHook(newTestIndexer(mentions, personCatalog("Milly")))
	ctx := context.Background()

	require.NoError(t, hook.OnPublished(ctx, "s1", "Milly smiled"))
	assert.Equal(t, 1, mentions.count("s1"))

	// 下线后提及清零
	require.NoError(t, hook.OnUnpublished(ctx, "s1"))
	assert.Zero(t, mentions.count("s1"))
}

func TestMentionIndexHook_UpdateOnlyWhenPublished(t *testing.T) {
	mentions := newFakeMentionRepo()
	hook := NewMentionIndexHook(newTestIndexer(mentions, personCatalog("Milly")))
	ctx := context.Background()

	// 草稿状态的更新不触发索引
	require.NoError(t, hook.OnUpdated(ctx, "s1", "Milly smiled", entity.StoryStatusDraft))
	assert.Zero(t, mentions.count("s1"))

	require.NoError(t, hook.OnUpdated(ctx, "s1", "Milly smiled", entity.StoryStatusPublished))
	assert.Equal(t, 1, mentions.count("s1"))
}
