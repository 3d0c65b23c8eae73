package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/repository"
	"github.com/hitoshi/threadboard/internal/repository/memory"
	"github.com/hitoshi/threadboard/internal/security"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	u1    *model.User
	u2    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	})

	f := &fixture{
		svc:   NewService(store.Posts(), store.Comments(), security.NewMarkupChecker(), nil),
		store: store,
	}
	f.u1 = f.addUser(t, "u1", "Alice")
	f.u2 = f.addUser(t, "u2", "Bob")
	return f
}

func (f *fixture) addUser(t *testing.T, id, name string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: name, Email: id + "@example.com"}
	require.NoError(t, f.store.Users().CreateWithIdentity(context.Background(), u, &model.Identity{
		ID: "ident-" + id, UserID: id, Provider: "google", ProviderUserID: "sub-" + id,
	}))
	return u
}

func (f *fixture) createPost(t *testing.T, actor *model.User, title string) *model.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), actor, PostInput{Title: title, Content: "body of " + title})
	require.NoError(t, err)
	return p
}

func (f *fixture) createComment(t *testing.T, actor *model.User, postID int64, content string, parentID *int64) *model.Comment {
	t.Helper()
	c, err := f.svc.CreateComment(context.Background(), actor, postID, CommentInput{Content: content, ParentID: parentID})
	require.NoError(t, err)
	return c
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected *model.APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreatePost(context.Background(), f.u1, PostInput{Title: "Hello", Content: "World"})
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "World", post.Content)
	assert.Equal(t, f.u1.ID, post.AuthorID)
	require.NotNil(t, post.Author)
	assert.Equal(t, f.u1.ID, post.Author.ID)

	got, err := f.svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Alice", got.Author.Name)
}

func TestCreatePost_RequiresActor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePost(context.Background(), nil, PostInput{Title: "t", Content: "c"})
	requireCode(t, err, model.ErrCodeUnauthenticated)

	posts, err := f.svc.ListPosts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input PostInput
	}{
		{"タイトルなし", PostInput{Title: "", Content: "c"}},
		{"本文なし", PostInput{Title: "t", Content: ""}},
		{"空白のみ", PostInput{Title: "   ", Content: "c"}},
		{"タグのみ", PostInput{Title: "<b></b>", Content: "c"}},
		{"本文が空白のみ", PostInput{Title: "t", Content: "\n\t "}},
		{"タイトル長すぎ", PostInput{Title: strings.Repeat("あ", 201), Content: "c"}},
		{"本文長すぎ", PostInput{Title: "t", Content: strings.Repeat("a", 20001)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePost(context.Background(), f.u1, tt.input)
			requireCode(t, err, model.ErrCodeValidationFailed)
		})
	}

	// 上限ちょうどは許可される
	_, err := f.svc.CreatePost(context.Background(), f.u1, PostInput{Title: strings.Repeat("あ", 200), Content: "c"})
	assert.NoError(t, err)
}

func TestCreatePost_RejectsMarkup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inputs := []PostInput{
		{Title: "<h1>Title</h1>", Content: "c"},
		{Title: "t", Content: `<script>alert(1)</script><p>Tom & Jerry</p>`},
		{Title: "t", Content: "x<y>z"},
	}
	for _, in := range inputs {
		_, err := f.svc.CreatePost(ctx, f.u1, in)
		requireCode(t, err, model.ErrCodeValidationFailed)
	}

	posts, err := f.svc.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	post := f.createPost(t, f.u1, "p")
	_, err = f.svc.UpdatePost(ctx, f.u1, post.ID, PostInput{Title: "t", Content: "<b>bold</b>"})
	requireCode(t, err, model.ErrCodeValidationFailed)
	got, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "body of p", got.Content)
}

// 保存される値は入力と完全に一致する
var verbatimTexts = []string{
	"if a<b then c",
	"a<b",
	"I typed &lt;script&gt;alert(1)&lt;/script&gt;",
	"  indented code",
	"trailing newline\n",
	"Tom & Jerry say \"hi\"",
	"a < b > c",
	"1行目\r\n2行目",
}

func TestPost_TextRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range verbatimTexts {
		t.Run(text, func(t *testing.T) {
			post, err := f.svc.CreatePost(ctx, f.u1, PostInput{Title: text, Content: text})
			require.NoError(t, err)
			assert.Equal(t, text, post.Title)
			assert.Equal(t, text, post.Content)

			got, err := f.svc.GetPost(ctx, post.ID)
			require.NoError(t, err)
			assert.Equal(t, text, got.Title)
			assert.Equal(t, text, got.Content)

			updated, err := f.svc.UpdatePost(ctx, f.u1, post.ID, PostInput{Title: text + "!", Content: " " + text})
			require.NoError(t, err)
			assert.Equal(t, text+"!", updated.Title)
			assert.Equal(t, " "+text, updated.Content)

			got, err = f.svc.GetPost(ctx, post.ID)
			require.NoError(t, err)
			assert.Equal(t, text+"!", got.Title)
			assert.Equal(t, " "+text, got.Content)
		})
	}
}

func TestComment_TextRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.createPost(t, f.u1, "p")

	for _, text := range verbatimTexts {
		t.Run(text, func(t *testing.T) {
			c := f.createComment(t, f.u1, post.ID, text, nil)
			assert.Equal(t, text, c.Content)
			r := f.createComment(t, f.u2, post.ID, text, &c.ID)
			assert.Equal(t, text, r.Content)

			updated, err := f.svc.UpdateComment(ctx, f.u1, c.ID, CommentInput{Content: text + " "})
			require.NoError(t, err)
			assert.Equal(t, text+" ", updated.Content)

			threads, err := f.svc.ListCommentsForPost(ctx, post.ID)
			require.NoError(t, err)
			var found bool
			for _, th := range threads {
				if th.Comment.ID != c.ID {
					continue
				}
				found = true
				assert.Equal(t, text+" ", th.Comment.Content)
				require.Len(t, th.Replies, 1)
				assert.Equal(t, text, th.Replies[0].Content)
			}
			assert.True(t, found, "comment %d not listed", c.ID)
		})
	}
}

func TestComment_RejectsMarkupAndBlank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.createPost(t, f.u1, "p")

	_, err := f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: "<i>hi</i>"})
	requireCode(t, err, model.ErrCodeValidationFailed)
	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: " \n\t "})
	requireCode(t, err, model.ErrCodeValidationFailed)

	c := f.createComment(t, f.u1, post.ID, "plain", nil)
	_, err = f.svc.UpdateComment(ctx, f.u1, c.ID, CommentInput{Content: "<p>x</p>"})
	requireCode(t, err, model.ErrCodeValidationFailed)

	threads, err := f.svc.ListCommentsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "plain", threads[0].Comment.Content)
}

// deletingComments はCreateの直前にフックを実行するCommentRepository。
type deletingComments struct {
	repository.CommentRepository
	beforeCreate func()
}

func (d *deletingComments) Create(ctx context.Context, c *model.Comment) error {
	d.beforeCreate()
	return d.CommentRepository.Create(ctx, c)
}

func TestCreateComment_TargetDeletedConcurrently(t *testing.T) {
	ctx := context.Background()

	t.Run("投稿が削除された", func(t *testing.T) {
		f := newFixture(t)
		post := f.createPost(t, f.u1, "p")
		comments := &deletingComments{
			CommentRepository: f.store.Comments(),
			beforeCreate:      func() { require.NoError(t, f.store.Posts().Delete(ctx, post.ID)) },
		}
		svc := NewService(f.store.Posts(), comments, security.NewMarkupChecker(), nil)

		_, err := svc.CreateComment(ctx, f.u2, post.ID, CommentInput{Content: "late"})
		requireCode(t, err, model.ErrCodePostNotFound)
	})

	t.Run("親コメントが削除された", func(t *testing.T) {
		f := newFixture(t)
		post := f.createPost(t, f.u1, "p")
		parent := f.createComment(t, f.u1, post.ID, "parent", nil)
		comments := &deletingComments{
			CommentRepository: f.store.Comments(),
			beforeCreate:      func() { require.NoError(t, f.store.Comments().Delete(ctx, parent.ID)) },
		}
		svc := NewService(f.store.Posts(), comments, security.NewMarkupChecker(), nil)

		_, err := svc.CreateComment(ctx, f.u2, post.ID, CommentInput{Content: "late", ParentID: &parent.ID})
		requireCode(t, err, model.ErrCodeParentCommentNotFound)
	})
}

func TestListPosts_NewestFirst(t *testing.T) {
	f := newFixture(t)

	a := f.createPost(t, f.u1, "A")
	b := f.createPost(t, f.u2, "B")

	posts, err := f.svc.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, b.ID, posts[0].ID)
	assert.Equal(t, a.ID, posts[1].ID)
	assert.Equal(t, "Bob", posts[0].Author.Name)
}

func TestGetPost_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetPost(context.Background(), 999)
	requireCode(t, err, model.ErrCodePostNotFound)
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "orig")

	updated, err := f.svc.UpdatePost(context.Background(), f.u1, post.ID, PostInput{Title: "new", Content: "new body"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "new body", updated.Content)
	assert.Equal(t, f.u1.ID, updated.AuthorID)
	assert.True(t, updated.UpdatedAt.After(post.CreatedAt))
	assert.Equal(t, post.CreatedAt, updated.CreatedAt)
}

func TestUpdatePost_NonAuthorForbidden(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "orig")

	_, err := f.svc.UpdatePost(context.Background(), f.u2, post.ID, PostInput{Title: "hacked", Content: "hacked"})
	requireCode(t, err, model.ErrCodeForbidden)

	got, err := f.svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "orig", got.Title)
	assert.Equal(t, "body of orig", got.Content)
}

func TestUpdatePost_CheckOrder(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "orig")
	invalid := PostInput{}

	_, err := f.svc.UpdatePost(context.Background(), nil, 999, invalid)
	requireCode(t, err, model.ErrCodeUnauthenticated)

	_, err = f.svc.UpdatePost(context.Background(), f.u2, 999, invalid)
	requireCode(t, err, model.ErrCodePostNotFound)

	_, err = f.svc.UpdatePost(context.Background(), f.u2, post.ID, invalid)
	requireCode(t, err, model.ErrCodeForbidden)

	_, err = f.svc.UpdatePost(context.Background(), f.u1, post.ID, invalid)
	requireCode(t, err, model.ErrCodeValidationFailed)
}

func TestDeletePost_CascadesComments(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	c1 := f.createComment(t, f.u2, post.ID, "c1", nil)
	r1 := f.createComment(t, f.u1, post.ID, "r1", &c1.ID)

	require.NoError(t, f.svc.DeletePost(context.Background(), f.u1, post.ID))

	_, err := f.svc.GetPost(context.Background(), post.ID)
	requireCode(t, err, model.ErrCodePostNotFound)

	for _, id := range []int64{c1.ID, r1.ID} {
		c, err := f.store.Comments().FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, c)
	}
}

func TestDeletePost_Errors(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")

	requireCode(t, f.svc.DeletePost(context.Background(), nil, post.ID), model.ErrCodeUnauthenticated)
	requireCode(t, f.svc.DeletePost(context.Background(), f.u1, 999), model.ErrCodePostNotFound)
	requireCode(t, f.svc.DeletePost(context.Background(), f.u2, post.ID), model.ErrCodeForbidden)

	_, err := f.svc.GetPost(context.Background(), post.ID)
	assert.NoError(t, err)
}

func TestCreateComment_TopLevelAndReply(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")

	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)
	assert.Nil(t, c1.ParentID)
	assert.Equal(t, post.ID, c1.PostID)
	require.NotNil(t, c1.Author)
	assert.Equal(t, f.u1.ID, c1.Author.ID)

	r1 := f.createComment(t, f.u2, post.ID, "R1", &c1.ID)
	require.NotNil(t, r1.ParentID)
	assert.Equal(t, c1.ID, *r1.ParentID)
	assert.Equal(t, f.u2.ID, r1.AuthorID)
}

func TestCreateComment_Errors(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	other := f.createPost(t, f.u1, "other")
	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)
	r1 := f.createComment(t, f.u2, post.ID, "R1", &c1.ID)
	otherComment := f.createComment(t, f.u1, other.ID, "X", nil)
	missing := int64(9999)
	ctx := context.Background()

	_, err := f.svc.CreateComment(ctx, nil, post.ID, CommentInput{Content: "x"})
	requireCode(t, err, model.ErrCodeUnauthenticated)

	_, err = f.svc.CreateComment(ctx, f.u1, 9999, CommentInput{Content: "x"})
	requireCode(t, err, model.ErrCodePostNotFound)

	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: "x", ParentID: &missing})
	requireCode(t, err, model.ErrCodeParentCommentNotFound)

	// 別の投稿のコメントを親に指定
	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: "x", ParentID: &otherComment.ID})
	requireCode(t, err, model.ErrCodeParentCommentNotFound)

	// 返信への返信
	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: "x", ParentID: &r1.ID})
	requireCode(t, err, model.ErrCodeReplyDepthExceeded)

	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: ""})
	requireCode(t, err, model.ErrCodeValidationFailed)

	_, err = f.svc.CreateComment(ctx, f.u1, post.ID, CommentInput{Content: strings.Repeat("a", 2001)})
	requireCode(t, err, model.ErrCodeValidationFailed)

	threads, err := f.svc.ListCommentsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Replies, 1)
}

func TestListCommentsForPost_Threads(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	other := f.createPost(t, f.u1, "other")

	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)
	c2 := f.createComment(t, f.u2, post.ID, "C2", nil)
	r1 := f.createComment(t, f.u2, post.ID, "R1", &c1.ID)
	r2 := f.createComment(t, f.u1, post.ID, "R2", &c2.ID)
	r3 := f.createComment(t, f.u1, post.ID, "R3", &c1.ID)
	f.createComment(t, f.u1, other.ID, "elsewhere", nil)

	threads, err := f.svc.ListCommentsForPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, c1.ID, threads[0].Comment.ID)
	require.Len(t, threads[0].Replies, 2)
	assert.Equal(t, r1.ID, threads[0].Replies[0].ID)
	assert.Equal(t, r3.ID, threads[0].Replies[1].ID)
	assert.Equal(t, "Bob", threads[0].Replies[0].Author.Name)

	assert.Equal(t, c2.ID, threads[1].Comment.ID)
	require.Len(t, threads[1].Replies, 1)
	assert.Equal(t, r2.ID, threads[1].Replies[0].ID)
}

func TestListCommentsForPost_EmptyAndUnknown(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)

	threads, err := f.svc.ListCommentsForPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, c1.ID, threads[0].Comment.ID)
	assert.NotNil(t, threads[0].Replies)
	assert.Empty(t, threads[0].Replies)

	unknown, err := f.svc.ListCommentsForPost(context.Background(), 12345)
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestUpdateComment(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)
	r1 := f.createComment(t, f.u2, post.ID, "R1", &c1.ID)
	ctx := context.Background()

	// ParentIDは更新時に無視される
	updated, err := f.svc.UpdateComment(ctx, f.u2, r1.ID, CommentInput{Content: "edited", ParentID: nil})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, c1.ID, *updated.ParentID)

	_, err = f.svc.UpdateComment(ctx, f.u1, r1.ID, CommentInput{Content: "hijack"})
	requireCode(t, err, model.ErrCodeForbidden)

	_, err = f.svc.UpdateComment(ctx, f.u1, 9999, CommentInput{Content: "x"})
	requireCode(t, err, model.ErrCodeCommentNotFound)

	_, err = f.svc.UpdateComment(ctx, nil, r1.ID, CommentInput{Content: "x"})
	requireCode(t, err, model.ErrCodeUnauthenticated)

	_, err = f.svc.UpdateComment(ctx, f.u2, r1.ID, CommentInput{Content: ""})
	requireCode(t, err, model.ErrCodeValidationFailed)

	got, err := f.store.Comments().FindByID(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
}

func TestDeleteComment(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, f.u1, "p")
	c1 := f.createComment(t, f.u1, post.ID, "C1", nil)
	r1 := f.createComment(t, f.u2, post.ID, "R1", &c1.ID)
	ctx := context.Background()

	requireCode(t, f.svc.DeleteComment(ctx, f.u2, c1.ID), model.ErrCodeForbidden)
	requireCode(t, f.svc.DeleteComment(ctx, nil, c1.ID), model.ErrCodeUnauthenticated)
	requireCode(t, f.svc.DeleteComment(ctx, f.u1, 9999), model.ErrCodeCommentNotFound)

	// 返信のみの削除は親に影響しない
	require.NoError(t, f.svc.DeleteComment(ctx, f.u2, r1.ID))
	threads, err := f.svc.ListCommentsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Empty(t, threads[0].Replies)

	// トップレベルの削除で返信も消える
	r2 := f.createComment(t, f.u2, post.ID, "R2", &c1.ID)
	require.NoError(t, f.svc.DeleteComment(ctx, f.u1, c1.ID))
	threads, err = f.svc.ListCommentsForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, threads)
	got, err := f.store.Comments().FindByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// recordingCollector はRecordContentEventの呼び出しを記録する。
type recordingCollector struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingCollector) RecordContentEvent(kind, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+"/"+action)
}
func (r *recordingCollector) RecordLogin(bool)                                     {}
func (r *recordingCollector) RecordSessionsCleaned(int64)                          {}
func (r *recordingCollector) RecordHTTPRequest(string, string, int, time.Duration) {}

func TestService_RecordsContentEvents(t *testing.T) {
	store := memory.NewStore()
	rec := &recordingCollector{}
	svc := NewService(store.Posts(), store.Comments(), security.NewMarkupChecker(), rec)
	ctx := context.Background()

	u := &model.User{ID: "u1"}
	require.NoError(t, store.Users().CreateWithIdentity(ctx, u, &model.Identity{ID: "i1", UserID: "u1", Provider: "google", ProviderUserID: "s1"}))

	post, err := svc.CreatePost(ctx, u, PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	c, err := svc.CreateComment(ctx, u, post.ID, CommentInput{Content: "c"})
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, u, post.ID, CommentInput{Content: "r", ParentID: &c.ID})
	require.NoError(t, err)
	require.NoError(t, svc.DeletePost(ctx, u, post.ID))

	assert.Equal(t, []string{"post/created", "comment/created", "reply/created", "post/deleted"}, rec.events)
}
