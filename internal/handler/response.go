package handler

import (
	"time"

	"github.com/hitoshi/threadboard/internal/model"
)

// identityResponse はユーザー情報のAPIレスポンス。
type identityResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"providerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	AuthorID  string            `json:"authorId"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Author    *identityResponse `json:"author"`
}

// commentResponse はコメントのAPIレスポンス。
// トップレベルのコメントはparentIdがnullになる。
type commentResponse struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	AuthorID  string            `json:"authorId"`
	PostID    int64             `json:"postId"`
	ParentID  *int64            `json:"parentId"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Author    *identityResponse `json:"author"`
}

// commentThreadResponse はトップレベルコメントと返信のAPIレスポンス。
// repliesは返信がなくても空配列で出力する。
type commentThreadResponse struct {
	commentResponse
	Replies []commentResponse `json:"replies"`
}

func toIdentityResponse(u *model.User) *identityResponse {
	if u == nil {
		return nil
	}
	return &identityResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
		Provider:   u.Provider,
		ProviderID: u.ProviderUserID,
		CreatedAt:  u.CreatedAt,
	}
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Author:    toIdentityResponse(p.Author),
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	res := make([]postResponse, len(posts))
	for i, p := range posts {
		res[i] = toPostResponse(p)
	}
	return res
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		Content:   c.Content,
		AuthorID:  c.AuthorID,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Author:    toIdentityResponse(c.Author),
	}
}

func toCommentThreadResponses(threads []*model.CommentThread) []commentThreadResponse {
	res := make([]commentThreadResponse, len(threads))
	for i, th := range threads {
		replies := make([]commentResponse, len(th.Replies))
		for j, r := range th.Replies {
			replies[j] = toCommentResponse(r)
		}
		res[i] = commentThreadResponse{
			commentResponse: toCommentResponse(th.Comment),
			Replies:         replies,
		}
	}
	return res
}
