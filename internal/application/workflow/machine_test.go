package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/errors"
)

type fakeStoryRepo struct {
	stories       map[string]*entity.Story
	statusUpdates int
}

func (f *fakeStoryRepo) GetByID(_ context.Context, id string) (*entity.Story, error) {
	s, ok := f.stories[id]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeStoryRepo) ListPublished(_ context.Context, _ repository.Pagination) ([]*entity.Story, error) {
	return nil, nil
}

func (f *fakeStoryRepo) UpdateStatus(_ context.Context, id string, status entity.StoryStatus, publishedAt *time.Time) error {
	f.statusUpdates++
	s := f.stories[id]
	s.Status = status
	if publishedAt != nil {
		s.PublishedAt = publishedAt
	}
	return nil
}

type fakeTransitionRepo struct {
	appended []*entity.WorkflowTransition
}

func (f *fakeTransitionRepo) Append(_ context.Context, t *entity.WorkflowTransition) error {
	f.appended = append(f.appended, t)
	return nil
}

func (f *fakeTransitionRepo) ListByStory(_ context.Context, storyID string) ([]*entity.WorkflowTransition, error) {
	var out []*entity.WorkflowTransition
	for _, t := range f.appended {
		if t.StoryID == storyID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type hookRecorder struct {
	published   []string
	contents    []string
	unpublished []string
}

func (r *hookRecorder) FirePublished(_ context.Context, storyID, content string) {
	r.published = append(r.published, storyID)
	r.contents = append(r.contents, content)
}

func (r *hookRecorder) FireUnpublished(_ context.Context, storyID string) {
	r.unpublished = append(r.unpublished, storyID)
}

type errGate struct{}

func (errGate) Allow(context.Context) (bool, time.Duration, error) {
	return false, 0, context.DeadlineExceeded
}
func (errGate) Refund(context.Context) error { return nil }
func (errGate) Status(context.Context) (bool, time.Duration, error) {
	return false, 0, context.DeadlineExceeded
}
func (errGate) Reset(context.Context) error { return nil }

// failTx 模拟提交阶段失败的事务管理器
type failTx struct{}

func (failTx) WithTransaction(context.Context, func(ctx context.Context) error) error {
	return context.DeadlineExceeded
}

func newTestService(stories *fakeStoryRepo, transitions *fakeTransitionRepo, gate PublishGate, hooks *hookRecorder, allowRetraction bool) *Service {
	if gate == nil {
		gate = NewMemoryGate(100, time.Hour)
	}
	return NewService(stories, transitions, fakeTx{}, gate, hooks, allowRetraction)
}

func draftStory(id string) *entity.Story {
	return &entity.Story{ID: id, Slug: "s-" + id, Title: "t", Status: entity.StoryStatusDraft, Content: "body"}
}

func TestTransition_DraftToPublishedForbidden(t *testing.T) {
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": draftStory("s1")}}
	transitions := &fakeTransitionRepo{}
	hooks := &hookRecorder{}
	svc := newTestService(stories, transitions, nil, hooks, true)

	_, err := svc.Transition(context.Background(), "s1", entity.StoryStatusPublished, "u1", "")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition))
	// 拒绝的转换不留任何痕迹
	assert.Equal(t, entity.StoryStatusDraft, stories.stories["s1"].Status)
	assert.Zero(t, stories.statusUpdates)
	assert.Empty(t, transitions.appended)
	assert.Empty(t, hooks.published)
}

func TestTransition_FullRoundTrip(t *testing.T) {
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": draftStory("s1")}}
	transitions := &fakeTransitionRepo{}
	hooks := &hookRecorder{}
	svc := newTestService(stories, transitions, nil, hooks, true)
	ctx := context.Background()

	for _, to := range []entity.StoryStatus{
		entity.StoryStatusReview,
		entity.StoryStatusApproved,
		entity.StoryStatusPublished,
	} {
		result, err := svc.Transition(ctx, "s1", to, "u1", "step")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, to, result.CurrentStatus)
	}

	assert.Equal(t, entity.StoryStatusPublished, stories.stories["s1"].Status)
	require.NotNil(t, stories.stories["s1"].PublishedAt)
	assert.Len(t, transitions.appended, 3)

	// 发布钩子带正文同步执行
	require.Len(t, hooks.published, 1)
	assert.Equal(t, "s1", hooks.published[0])
	assert.Equal(t, "body", hooks.contents[0])
}

func TestTransition_ReviewBackToDraft(t *testing.T) {
	story := draftStory("s1")
	story.Status = entity.StoryStatusReview
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": story}}
	transitions := &fakeTransitionRepo{}
	hooks := &hookRecorder{}
	svc := newTestService(stories, transitions, nil, hooks, true)

	result, err := svc.Transition(context.Background(), "s1", entity.StoryStatusDraft, "u1", "needs work")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, entity.StoryStatusDraft, stories.stories["s1"].Status)
	// 回草稿触发下线清理
	assert.Equal(t, []string{"s1"}, hooks.unpublished)
}

func TestTransition_GateDenialHasNoSideEffects(t *testing.T) {
	story := draftStory("s1")
	story.Status = entity.StoryStatusApproved
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": story}}
	transitions := &fakeTransitionRepo{}
	hooks := &hookRecorder{}

	gate := NewMemoryGate(1, time.Hour)
	_, _, err := gate.Allow(context.Background())
	require.NoError(t, err)

	svc := newTestService(stories, transitions, gate, hooks, true)
	result, err := svc.Transition(context.Background(), "s1", entity.StoryStatusPublished, "u1", "")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodePublishRateLimited))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Greater(t, result.RetryAfter, time.Duration(0))

	// 拒绝不改状态、不写审计、不跑钩子
	assert.Equal(t, entity.StoryStatusApproved, stories.stories["s1"].Status)
	assert.Zero(t, stories.statusUpdates)
	assert.Empty(t, transitions.appended)
	assert.Empty(t, hooks.published)
}

func TestTransition_GateFailureFailsClosed(t *testing.T) {
	story := draftStory("s1")
	story.Status = entity.StoryStatusApproved
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": story}}
	svc := newTestService(stories, &fakeTransitionRepo{}, errGate{}, &hookRecorder{}, true)

	_, err := svc.Transition(context.Background(), "s1", entity.StoryStatusPublished, "u1", "")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCacheError))
	assert.Equal(t, entity.StoryStatusApproved, stories.stories["s1"].Status)
}

func TestTransition_CommitFailureRefundsGateSlot(t *testing.T) {
	story := draftStory("s1")
	story.Status = entity.StoryStatusApproved
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": story}}

	gate := NewMemoryGate(1, time.Hour)
	svc := NewService(stories, &fakeTransitionRepo{}, failTx{}, gate, &hookRecorder{}, true)

	_, err := svc.Transition(context.Background(), "s1", entity.StoryStatusPublished, "u1", "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseError))

	// 失败的发布不烧窗口配额
	allowed, _, err := gate.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTransition_RetractionBehindFlag(t *testing.T) {
	published := draftStory("s1")
	published.Status = entity.StoryStatusPublished

	t.Run("enabled", func(t *testing.T) {
		story := *published
		stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": &story}}
		hooks := &hookRecorder{}
		svc := newTestService(stories, &fakeTransitionRepo{}, nil, hooks, true)

		result, err := svc.Transition(context.Background(), "s1", entity.StoryStatusReview, "u1", "retract")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"s1"}, hooks.unpublished)
	})

	t.Run("disabled", func(t *testing.T) {
		story := *published
		stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": &story}}
		svc := newTestService(stories, &fakeTransitionRepo{}, nil, &hookRecorder{}, false)

		_, err := svc.Transition(context.Background(), "s1", entity.StoryStatusReview, "u1", "retract")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeRetractionDisabled))
	})
}

func TestTransition_UnknownStory(t *testing.T) {
	svc := newTestService(&fakeStoryRepo{stories: map[string]*entity.Story{}}, &fakeTransitionRepo{}, nil, &hookRecorder{}, true)

	_, err := svc.Transition(context.Background(), "missing", entity.StoryStatusReview, "u1", "")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoryNotFound))
}

func TestHistory_UnknownStory(t *testing.T) {
	svc := newTestService(&fakeStoryRepo{stories: map[string]*entity.Story{}}, &fakeTransitionRepo{}, nil, &hookRecorder{}, true)

	_, err := svc.History(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoryNotFound))
}

func TestAllowedEdges_RetractionFlag(t *testing.T) {
	stories := &fakeStoryRepo{stories: map[string]*entity.Story{}}

	with := newTestService(stories, &fakeTransitionRepo{}, nil, &hookRecorder{}, true)
	without := newTestService(stories, &fakeTransitionRepo{}, nil, &hookRecorder{}, false)

	assert.Len(t, with.AllowedEdges(), 5)
	assert.Len(t, without.AllowedEdges(), 4)
}

func TestCanPublish_ReportsGateStatus(t *testing.T) {
	gate := NewMemoryGate(1, time.Hour)
	svc := newTestService(&fakeStoryRepo{stories: map[string]*entity.Story{}}, &fakeTransitionRepo{}, gate, &hookRecorder{}, true)
	ctx := context.Background()

	status, err := svc.CanPublish(ctx)
	require.NoError(t, err)
	assert.True(t, status.Allowed)

	_, _, err = gate.Allow(ctx)
	require.NoError(t, err)

	status, err = svc.CanPublish(ctx)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Greater(t, status.RetryAfterSeconds, 0.0)
}
