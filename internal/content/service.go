// Package content は投稿とコメントのドメインロジックを提供する。
//
// 変更系の操作は全て操作主体（actor）を明示的に受け取り、
// policyパッケージの所有者判定を経てから永続化する。
package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/hitoshi/threadboard/internal/metrics"
	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/repository"
	"github.com/hitoshi/threadboard/internal/security"
)

// PostInput は投稿の作成・更新時の入力。
// 長さは文字数（rune数）で検査する。値は受け取ったまま保存され、空白のみは未入力とみなす。
type PostInput struct {
	Title   string `validate:"required,notblank,max=200"`
	Content string `validate:"required,notblank,max=20000"`
}

// CommentInput はコメントの作成・更新時の入力。
// ParentIDは作成時のみ参照され、更新時は無視される。
type CommentInput struct {
	Content  string `validate:"required,notblank,max=2000"`
	ParentID *int64
}

// Service は投稿・コメントのサービス層。
type Service struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	markup   security.MarkupChecker
	validate *validator.Validate
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	markup security.MarkupChecker,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 登録に失敗するのはタグ名が不正な場合のみ
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	return &Service{
		posts:    posts,
		comments: comments,
		markup:   markup,
		validate: validate,
		metrics:  collector,
	}
}

// validateInput は構造体タグに従って入力を検査し、違反があればVALIDATION_FAILEDを返す。
func (s *Service) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力の検証に失敗しました: %w", err)
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "notblank":
			details = append(details, fmt.Sprintf("%s is required", field))
		case "max":
			details = append(details, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			details = append(details, fmt.Sprintf("%s is invalid", field))
		}
	}
	return model.NewValidationError(strings.Join(details, "; "))
}

// rejectMarkup はHTMLタグを含むフィールドがあればVALIDATION_FAILEDを返す。
// テキストは書き換えずに保存するため、マークアップは除去せず入力ごと拒否する。
func (s *Service) rejectMarkup(fields ...textField) error {
	details := make([]string, 0, len(fields))
	for _, f := range fields {
		if s.markup.ContainsMarkup(f.value) {
			details = append(details, fmt.Sprintf("%s must not contain HTML markup", f.name))
		}
	}
	if len(details) == 0 {
		return nil
	}
	return model.NewValidationError(strings.Join(details, "; "))
}

type textField struct {
	name  string
	value string
}

// checkPost は投稿入力を検査する。
func (s *Service) checkPost(input PostInput) error {
	if err := s.validateInput(input); err != nil {
		return err
	}
	return s.rejectMarkup(textField{"title", input.Title}, textField{"content", input.Content})
}

// checkComment はコメント入力を検査する。
func (s *Service) checkComment(input CommentInput) error {
	if err := s.validateInput(input); err != nil {
		return err
	}
	return s.rejectMarkup(textField{"content", input.Content})
}

func commentKind(c *model.Comment) string {
	if c.IsTopLevel() {
		return metrics.KindComment
	}
	return metrics.KindReply
}
