// Package control は注入コントロールのライフサイクルを明示的な状態機械として提供する。
// 状態遷移は純粋関数Transitionに集約され、DOMなしで単体テストできる。
package control

import "fmt"

// State はコントロールの状態を表す。
type State string

const (
	// StateIdle は初期状態。保存トリガーが表示されている。
	StateIdle State = "idle"
	// StateExpanded はインラインフォーム（注記入力 + 確定/キャンセル）展開中。
	StateExpanded State = "expanded"
	// StateSaving は保存アクション実行中。コントロールは無効化され、再入は拒否される。
	StateSaving State = "saving"
	// StateSaved は保存成功の確認表示中。一定時間後にIdleへ復帰する。
	StateSaved State = "saved"
	// StateFailed は保存失敗。エラーを提示した上で再操作可能なExpandedへ戻るための中間状態。
	StateFailed State = "failed"
)

// Event はコントロールへの入力イベントを表す。
type Event string

const (
	// EventClick はIdle状態のトリガークリック。
	EventClick Event = "click"
	// EventCancel は展開フォームのキャンセル。
	EventCancel Event = "cancel"
	// EventConfirm は展開フォームの確定（保存開始）。
	EventConfirm Event = "confirm"
	// EventSaveSucceeded は保存アクションの成功応答。
	EventSaveSucceeded Event = "save_succeeded"
	// EventSaveFailed は保存アクションの失敗応答。
	EventSaveFailed Event = "save_failed"
	// EventConfirmationElapsed は保存完了表示の経過（Idle復帰タイマー）。
	EventConfirmationElapsed Event = "confirmation_elapsed"
	// EventRetry は失敗提示後の再操作（Expandedへの復帰）。
	EventRetry Event = "retry"
)

// Control は1つの注入コントロールの状態とコンテキストを保持する。
// PostIdentityで投稿と紐づき、SaveErrorは直近の失敗メッセージを保持する。
type Control struct {
	PostIdentity string
	State        State
	Note         string // 展開フォームに入力された任意の注記
	SaveError    string // 直近の保存失敗メッセージ（Failed状態でのみ有効）
}

// NewControl はIdle状態の新しいControlを生成する。
func NewControl(postIdentity string) *Control {
	return &Control{
		PostIdentity: postIdentity,
		State:        StateIdle,
	}
}

// Transition は現在状態とイベントから次状態を返す純粋関数。
// 定義されていない遷移はエラーを返し、状態は変化しないものとして扱う。
//
// 遷移表:
//
//	Idle     --click-->                Expanded
//	Expanded --cancel-->               Idle
//	Expanded --confirm-->              Saving
//	Saving   --save_succeeded-->       Saved
//	Saving   --save_failed-->          Failed
//	Failed   --retry-->                Expanded
//	Saved    --confirmation_elapsed--> Idle
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		if event == EventClick {
			return StateExpanded, nil
		}
	case StateExpanded:
		switch event {
		case EventCancel:
			return StateIdle, nil
		case EventConfirm:
			return StateSaving, nil
		}
	case StateSaving:
		switch event {
		case EventSaveSucceeded:
			return StateSaved, nil
		case EventSaveFailed:
			return StateFailed, nil
		}
	case StateSaved:
		if event == EventConfirmationElapsed {
			return StateIdle, nil
		}
	case StateFailed:
		if event == EventRetry {
			return StateExpanded, nil
		}
	}

	return current, fmt.Errorf("不正な遷移です: %s + %s", current, event)
}

// Apply はイベントをControlへ適用する。
// 遷移が定義されていない場合は状態を変更せずエラーを返す。
// Saving中の再confirmはここで拒否される（再入ガード）。
func (c *Control) Apply(event Event) error {
	next, err := Transition(c.State, event)
	if err != nil {
		return err
	}

	// Idleへ戻る際はフォーム入力とエラーをクリアする
	if next == StateIdle {
		c.Note = ""
		c.SaveError = ""
	}
	if next == StateExpanded && event == EventClick {
		c.SaveError = ""
	}

	c.State = next
	return nil
}

// Fail は保存失敗を記録し、Failed状態へ遷移させる。
// 失敗メッセージは再操作可能なExpandedへ戻るまで保持される。
func (c *Control) Fail(message string) error {
	if err := c.Apply(EventSaveFailed); err != nil {
		return err
	}
	c.SaveError = message
	return nil
}
