// Package save は保存アクションのオーケストレーションを提供する。
// 投稿identityごとのコントロール状態機械を保持し、コラボレータ呼び出しの
// 前後で遷移を駆動する。保存はユーザーが成否のフィードバックを直接
// 期待する唯一の操作であり、失敗はそのまま呼び出し元へ返される。
package save

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/trendman/internal/control"
	"github.com/hitoshi/trendman/internal/model"
)

// Saver は保存アクションの送信先インターフェース。
// collab.Client（HTTP経由）またはローカルのアイデアサービスが実装する。
type Saver interface {
	SaveIdea(ctx context.Context, req model.SavePostRequest) error
}

// Recorder は保存アクションが記録するメトリクスのインターフェース。
type Recorder interface {
	RecordIdeaSaved(source string)
	RecordSaveFailure()
}

// nopRecorder はRecorderの何もしない実装。
type nopRecorder struct{}

func (nopRecorder) RecordIdeaSaved(string) {}
func (nopRecorder) RecordSaveFailure()     {}

// Service は投稿identityごとのコントロールを管理し、保存アクションを実行する。
type Service struct {
	saver           Saver
	logger          *slog.Logger
	metrics         Recorder
	confirmationTTL time.Duration

	mu       sync.Mutex
	controls map[string]*control.Control
	timers   map[string]*time.Timer
}

// NewService はServiceの新しいインスタンスを生成する。
// confirmationTTLは保存完了表示からIdle復帰までの時間。
// metricsがnilの場合は何も記録しない。
func NewService(saver Saver, logger *slog.Logger, metrics Recorder, confirmationTTL time.Duration) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if confirmationTTL <= 0 {
		confirmationTTL = 1500 * time.Millisecond
	}
	return &Service{
		saver:           saver,
		logger:          logger,
		metrics:         metrics,
		confirmationTTL: confirmationTTL,
		controls:        make(map[string]*control.Control),
		timers:          make(map[string]*time.Timer),
	}
}

// Stop は保留中のIdle復帰タイマーをすべて停止する。
// テストおよびシャットダウン時の決定的なティアダウンのために使用する。
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// State は指定identityのコントロールの現在状態を返す。
// 未登録のidentityはIdleとして扱われる。
func (s *Service) State(identity string) control.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controls[identity]; ok {
		return c.State
	}
	return control.StateIdle
}

// LastError は指定identityの直近の保存失敗メッセージを返す。
func (s *Service) LastError(identity string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controls[identity]; ok {
		return c.SaveError
	}
	return ""
}

// ensureControl はidentityのコントロールを取得し、なければ生成する。
// 呼び出し側はmuを保持していること。
func (s *Service) ensureControl(identity string) *control.Control {
	c, ok := s.controls[identity]
	if !ok {
		c = control.NewControl(identity)
		s.controls[identity] = c
	}
	return c
}

// Save は保存アクションを実行する。
// Idle状態のコントロールは展開を経て保存へ進む。既にSaving中の場合は
// 重複送信として拒否される（disabledフラグ相当の再入ガード）。
// 成功時はSaved状態となり、confirmationTTL経過後に自動でIdleへ復帰する。
// 失敗時はエラーを保持したまま再操作可能なExpandedへ戻り、エラーを返す。
func (s *Service) Save(ctx context.Context, identity string, req model.SavePostRequest) error {
	s.mu.Lock()
	c := s.ensureControl(identity)

	if c.State == control.StateSaving {
		s.mu.Unlock()
		return model.NewSaveFailedError("保存処理が進行中です")
	}

	// Idleからの呼び出しはユーザーのクリック+確定に相当する
	if c.State == control.StateIdle {
		if err := c.Apply(control.EventClick); err != nil {
			s.mu.Unlock()
			return model.NewSaveFailedError(err.Error())
		}
	}
	c.Note = req.Note
	if err := c.Apply(control.EventConfirm); err != nil {
		s.mu.Unlock()
		return model.NewSaveFailedError(err.Error())
	}
	s.mu.Unlock()

	// 保存アクション本体（非同期境界）。この間コントロールはSavingで
	// 再入を拒否し続ける。
	saveErr := s.saver.SaveIdea(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if saveErr != nil {
		if err := c.Fail(saveErr.Error()); err != nil {
			s.logger.Error("失敗遷移の適用に失敗しました",
				slog.String("identity", identity),
				slog.String("error", err.Error()),
			)
		}
		// ユーザーが再試行できるようExpandedへ戻す（エラーは保持される）
		if err := c.Apply(control.EventRetry); err != nil {
			s.logger.Error("再操作遷移の適用に失敗しました",
				slog.String("identity", identity),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Warn("保存アクションが失敗しました",
			slog.String("identity", identity),
			slog.String("error", saveErr.Error()),
		)
		s.metrics.RecordSaveFailure()
		return model.NewSaveFailedError(saveErr.Error())
	}

	if err := c.Apply(control.EventSaveSucceeded); err != nil {
		s.logger.Error("成功遷移の適用に失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
	}
	s.scheduleRestore(identity)
	s.metrics.RecordIdeaSaved(string(model.IdeaSourcePost))

	return nil
}

// scheduleRestore は確認表示の経過後にIdleへ復帰させるタイマーを登録する。
// 呼び出し側はmuを保持していること。
func (s *Service) scheduleRestore(identity string) {
	if prev, ok := s.timers[identity]; ok {
		prev.Stop()
	}
	s.timers[identity] = time.AfterFunc(s.confirmationTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, identity)
		if c, ok := s.controls[identity]; ok {
			if err := c.Apply(control.EventConfirmationElapsed); err != nil {
				s.logger.Warn("Idle復帰遷移の適用に失敗しました",
					slog.String("identity", identity),
					slog.String("error", err.Error()),
				)
			}
		}
	})
}
