package save

import (
	"context"

	"github.com/hitoshi/trendman/internal/model"
)

// IdeaCreator は保存アクションのローカル保存先インターフェース。
type IdeaCreator interface {
	CreateIdea(ctx context.Context, input model.NewIdeaInput) (*model.Idea, error)
}

// LocalSaver はコラボレータを介さず自サービスのアイデアAPIへ直接保存する。
// COLLAB_ENDPOINTが未設定の場合の送信先となる。
type LocalSaver struct {
	ideas IdeaCreator
}

// NewLocalSaver はLocalSaverの新しいインスタンスを生成する。
func NewLocalSaver(ideas IdeaCreator) *LocalSaver {
	return &LocalSaver{ideas: ideas}
}

// SaveIdea は投稿をpost由来のアイデアとして保存する。
func (s *LocalSaver) SaveIdea(ctx context.Context, req model.SavePostRequest) error {
	capturedAt := req.CapturedAt
	_, err := s.ideas.CreateIdea(ctx, model.NewIdeaInput{
		BrandID:          req.BrandID,
		Content:          req.Content,
		Note:             req.Note,
		Source:           model.IdeaSourcePost,
		AuthorName:       req.AuthorName,
		AuthorProfileURL: req.AuthorProfileURL,
		CapturedAt:       &capturedAt,
	})
	return err
}

var _ Saver = (*LocalSaver)(nil)
