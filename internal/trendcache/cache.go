package trendcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// KVStore はキャッシュの永続化バックエンドのインターフェース。
// 日付バケットと集合のロジックをインメモリのフェイクに対して
// 単体テストできるよう、最小限のget/setに絞っている。
type KVStore interface {
	// Get はキーの値を取得する。キーが存在しない場合はok=falseを返す。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set はキーに値を書き込む。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error
}

// dailyEntry はストレージ上のデイリーキャッシュエントリの形。
type dailyEntry struct {
	Date string                 `json:"date"` // YYYY-MM-DD（現地時間）
	Data []model.CategoryTrends `json:"data"`
}

// Cache はデイリートレンドキャッシュと追加済みURLレジストリを提供する。
// ストレージ障害は常にミスとして扱い、呼び出し側を停止させない。
type Cache struct {
	store  KVStore
	logger *slog.Logger
	now    func() time.Time // テストで日付を差し替えるためのフック
}

// New はCacheの新しいインスタンスを生成する。
func New(store KVStore, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// today は現地時間の暦日をYYYY-MM-DD形式で返す。
func (c *Cache) today() string {
	return c.now().Format("2006-01-02")
}

// Read はブランドの当日分キャッシュを読み出す。
// 保存された日付が今日と一致する場合のみ結果を返し、
// 不一致（日付跨ぎ・時計変更を含む）はnilを返す。
// パース失敗やストレージ障害はログに記録した上でミスとして扱う。
func (c *Cache) Read(ctx context.Context, brandID string) []model.CategoryTrends {
	raw, ok, err := c.store.Get(ctx, DailyKey(brandID))
	if err != nil {
		c.logger.Warn("トレンドキャッシュの読み出しに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}

	var entry dailyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("トレンドキャッシュエントリのパースに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if entry.Date != c.today() {
		return nil
	}

	return entry.Data
}

// Write はブランドの当日分キャッシュを上書き保存する。
// マージはせず、最後の書き込みが勝つ。
// 呼び出し側はスキャンが完全に成功した場合のみWriteすること
// （失敗結果をキャッシュしないのは消費側の契約）。
func (c *Cache) Write(ctx context.Context, brandID string, results []model.CategoryTrends) error {
	entry := dailyEntry{
		Date: c.today(),
		Data: results,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, DailyKey(brandID), string(raw)); err != nil {
		c.logger.Warn("トレンドキャッシュの書き込みに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// IsAdded は指定URLがブランドで既にアイデアへ変換済みかを返す。
// ストレージ障害時はfalseを返す（常にミスへの縮退）。
func (c *Cache) IsAdded(ctx context.Context, brandID, url string) bool {
	urls := c.readAdded(ctx, brandID)
	for _, u := range urls {
		if u == url {
			return true
		}
	}
	return false
}

// MarkAdded は指定URLをブランドの追加済みレジストリへ記録する。
// 冪等な挿入であり、既に存在するURLは重複登録されない。
// レジストリは単調増加で、このコンポーネントからは削除されない。
func (c *Cache) MarkAdded(ctx context.Context, brandID, url string) error {
	urls := c.readAdded(ctx, brandID)
	for _, u := range urls {
		if u == url {
			return nil
		}
	}
	urls = append(urls, url)

	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, AddedKey(brandID), string(raw)); err != nil {
		c.logger.Warn("追加済みURLレジストリの書き込みに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// readAdded はブランドの追加済みURLリストを読み出す。
// 障害・破損時は空リストを返す。
func (c *Cache) readAdded(ctx context.Context, brandID string) []string {
	raw, ok, err := c.store.Get(ctx, AddedKey(brandID))
	if err != nil {
		c.logger.Warn("追加済みURLレジストリの読み出しに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		c.logger.Warn("追加済みURLレジストリのパースに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return urls
}
