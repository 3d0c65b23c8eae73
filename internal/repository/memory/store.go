// Package memory はプロセス内メモリに保持するリポジトリ実装を提供する。
// STORAGE_DRIVER=memory での起動とテストで使用する。再起動でデータは失われる。
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/repository"
)

// Store は全リポジトリのデータを単一のロックで保持する。
// 投稿削除時のコメント連鎖削除などテーブル横断の整合性を保つため、
// 各リポジトリは同じStoreを共有する。
type Store struct {
	mu sync.RWMutex

	users      map[string]*model.User
	identities map[string]*model.Identity // key: provider + "\x00" + providerUserID
	sessions   map[string]*model.Session
	posts      map[int64]*model.Post
	comments   map[int64]*model.Comment

	nextPostID    int64
	nextCommentID int64

	now func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*model.User),
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
		posts:      make(map[int64]*model.Post),
		comments:   make(map[int64]*model.Comment),
		now:        time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。テスト用。
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users はUserRepositoryを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Identities はIdentityRepositoryを返す。
func (s *Store) Identities() *IdentityRepo { return &IdentityRepo{s: s} }

// Sessions はSessionRepositoryを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Posts はPostRepositoryを返す。
func (s *Store) Posts() *PostRepo { return &PostRepo{s: s} }

// Comments はCommentRepositoryを返す。
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s: s} }

func identityKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

// authorLocked は作成者情報のコピーを返す。呼び出し側でロックを保持すること。
func (s *Store) authorLocked(userID string) *model.User {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *Store) postLocked(p *model.Post) *model.Post {
	cp := *p
	cp.Author = s.authorLocked(p.AuthorID)
	return &cp
}

func (s *Store) commentLocked(c *model.Comment) *model.Comment {
	cp := *c
	if c.ParentID != nil {
		pid := *c.ParentID
		cp.ParentID = &pid
	}
	cp.Author = s.authorLocked(c.AuthorID)
	return &cp
}

// deleteCommentLocked はコメントとその返信を削除する。
func (s *Store) deleteCommentLocked(id int64) {
	for cid, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.comments, id)
}

// UserRepo はメモリ上のユーザーリポジトリ。
type UserRepo struct{ s *Store }

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.authorLocked(id), nil
}

// CreateWithIdentity はユーザーとidentityを同時に登録する。
// identityが既に存在する場合はrepository.ErrDuplicateIdentityを返し、何も登録しない。
func (r *UserRepo) CreateWithIdentity(_ context.Context, user *model.User, identity *model.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, exists := r.s.identities[key]; exists {
		return repository.ErrDuplicateIdentity
	}
	if _, exists := r.s.users[user.ID]; exists {
		return fmt.Errorf("user already exists: %s", user.ID)
	}

	user.Provider = identity.Provider
	user.ProviderUserID = identity.ProviderUserID
	u := *user
	r.s.users[user.ID] = &u
	ident := *identity
	r.s.identities[key] = &ident
	return nil
}

// IdentityRepo はメモリ上のidentityリポジトリ。
type IdentityRepo struct{ s *Store }

// FindByProviderAndProviderUserID はidentityを検索する。見つからない場合はnilを返す。
func (r *IdentityRepo) FindByProviderAndProviderUserID(_ context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ident, ok := r.s.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	cp := *ident
	return &cp, nil
}

// SessionRepo はメモリ上のセッションリポジトリ。
type SessionRepo struct{ s *Store }

// Create はセッションを登録する。
func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

// FindByID は有効なセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(r.s.now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

// DeleteByID はセッションを削除する。存在しなくてもエラーにしない。
func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *SessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// PostRepo はメモリ上の投稿リポジトリ。
type PostRepo struct{ s *Store }

// FindByID は指定IDの投稿を作成者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostRepo) FindByID(_ context.Context, id int64) (*model.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	return r.s.postLocked(p), nil
}

// List は全投稿をcreated_at降順（同時刻はID降順）で返す。
func (r *PostRepo) List(_ context.Context) ([]*model.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	posts := make([]*model.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		posts = append(posts, r.s.postLocked(p))
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

// Create は投稿を登録し、採番したIDとタイムスタンプをpostに設定する。
func (r *PostRepo) Create(_ context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[post.AuthorID]; !ok {
		return fmt.Errorf("author not found: %s", post.AuthorID)
	}
	r.s.nextPostID++
	now := r.s.now()
	post.ID = r.s.nextPostID
	post.CreatedAt = now
	post.UpdatedAt = now
	cp := *post
	cp.Author = nil
	r.s.posts[post.ID] = &cp
	return nil
}

// Update は投稿のtitleとcontentを上書きし、updated_atを更新する。
func (r *PostRepo) Update(_ context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.posts[post.ID]
	if !ok {
		return fmt.Errorf("post not found: %d", post.ID)
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.UpdatedAt = r.s.now()
	post.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete は投稿と、その投稿に付いた全コメントを削除する。
func (r *PostRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[id]; !ok {
		return fmt.Errorf("post not found: %d", id)
	}
	for cid, c := range r.s.comments {
		if c.PostID == id {
			delete(r.s.comments, cid)
		}
	}
	delete(r.s.posts, id)
	return nil
}

// CommentRepo はメモリ上のコメントリポジトリ。
type CommentRepo struct{ s *Store }

// FindByID は指定IDのコメントを作成者情報付きで取得する。見つからない場合はnilを返す。
func (r *CommentRepo) FindByID(_ context.Context, id int64) (*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, nil
	}
	return r.s.commentLocked(c), nil
}

// ListTopLevelByPost は投稿のトップレベルコメントを作成日時昇順で返す。
func (r *CommentRepo) ListTopLevelByPost(_ context.Context, postID int64) ([]*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var comments []*model.Comment
	for _, c := range r.s.comments {
		if c.PostID == postID && c.ParentID == nil {
			comments = append(comments, r.s.commentLocked(c))
		}
	}
	sortAscending(comments)
	return comments, nil
}

// ListRepliesByParentIDs は親コメント群への返信を親IDごとに作成日時昇順で返す。
func (r *CommentRepo) ListRepliesByParentIDs(_ context.Context, parentIDs []int64) (map[int64][]*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = struct{}{}
	}
	replies := make(map[int64][]*model.Comment)
	for _, c := range r.s.comments {
		if c.ParentID == nil {
			continue
		}
		if _, ok := wanted[*c.ParentID]; ok {
			replies[*c.ParentID] = append(replies[*c.ParentID], r.s.commentLocked(c))
		}
	}
	for _, list := range replies {
		sortAscending(list)
	}
	return replies, nil
}

// Create はコメントを登録し、採番したIDとタイムスタンプをcommentに設定する。
// 投稿と親コメントの存在は外部キー相当として検査する。
func (r *CommentRepo) Create(_ context.Context, comment *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[comment.PostID]; !ok {
		return fmt.Errorf("%w: %d", repository.ErrPostNotFound, comment.PostID)
	}
	if _, ok := r.s.users[comment.AuthorID]; !ok {
		return fmt.Errorf("author not found: %s", comment.AuthorID)
	}
	if comment.ParentID != nil {
		if _, ok := r.s.comments[*comment.ParentID]; !ok {
			return fmt.Errorf("%w: %d", repository.ErrParentCommentNotFound, *comment.ParentID)
		}
	}
	r.s.nextCommentID++
	now := r.s.now()
	comment.ID = r.s.nextCommentID
	comment.CreatedAt = now
	comment.UpdatedAt = now
	stored := &model.Comment{
		ID:        comment.ID,
		Content:   comment.Content,
		AuthorID:  comment.AuthorID,
		PostID:    comment.PostID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if comment.ParentID != nil {
		pid := *comment.ParentID
		stored.ParentID = &pid
	}
	r.s.comments[comment.ID] = stored
	return nil
}

// Update はコメントのcontentを上書きし、updated_atを更新する。
func (r *CommentRepo) Update(_ context.Context, comment *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.comments[comment.ID]
	if !ok {
		return fmt.Errorf("comment not found: %d", comment.ID)
	}
	stored.Content = comment.Content
	stored.UpdatedAt = r.s.now()
	comment.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete はコメントとその返信を削除する。
func (r *CommentRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[id]; !ok {
		return fmt.Errorf("comment not found: %d", id)
	}
	r.s.deleteCommentLocked(id)
	return nil
}

func sortAscending(comments []*model.Comment) {
	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].ID < comments[j].ID
	})
}

// compile-time interface checks
var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.IdentityRepository = (*IdentityRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
	_ repository.PostRepository     = (*PostRepo)(nil)
	_ repository.CommentRepository  = (*CommentRepo)(nil)
)
