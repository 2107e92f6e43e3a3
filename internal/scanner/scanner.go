package scanner

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/page"
)

// Recorder はスキャンメトリクス収集のインターフェース。
type Recorder interface {
	RecordPostDetected()
	RecordPostInjected()
	RecordPostSkipped(reason string)
	RecordScanFailure()
}

// NopRecorder は何も記録しないRecorder。テストおよびメトリクス無効時に使用する。
type NopRecorder struct{}

func (NopRecorder) RecordPostDetected()            {}
func (NopRecorder) RecordPostInjected()            {}
func (NopRecorder) RecordPostSkipped(reason string) {}
func (NopRecorder) RecordScanFailure()             {}

// Config はスキャナの調整パラメータを保持する。
// いずれも業務上の不変条件ではなく設定値として扱う。
type Config struct {
	// MinContentLen は正規化後本文の最小文字数。これ以上（境界値を含む）で
	// コントロールが注入され、未満は「内容不足」としてスキップされる。
	MinContentLen int
	// IdentityPrefixLen はidentity導出に使う本文プレフィックス長。
	IdentityPrefixLen int
}

// DefaultConfig はスキャナのデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		MinContentLen:     10,
		IdentityPrefixLen: 50,
	}
}

// Report は1回のスキャンの結果集計を表す。
type Report struct {
	// Candidates は検出された投稿候補の総数。
	Candidates int
	// Posts は今回のスキャンでコントロールが注入された投稿。
	Posts []model.DetectedPost
	// SkippedProcessed は処理済みマーカーによりスキップされた件数。
	SkippedProcessed int
	// SkippedShort は内容不足によりスキップされた件数。
	SkippedShort int
	// Failed は抽出・注入に失敗した件数（スキャン全体は継続される）。
	Failed int
}

// Scanner はフィードページのドキュメントをスキャンし、投稿の検出・抽出・
// コントロール注入を行う。複数インスタンスは状態を共有しない。
type Scanner struct {
	adapter  page.Adapter
	registry *ProcessedRegistry
	logger   *slog.Logger
	metrics  Recorder
	cfg      Config
}

// New はScannerの新しいインスタンスを生成する。
// metricsがnilの場合はNopRecorderを使用する。
func New(adapter page.Adapter, logger *slog.Logger, metrics Recorder, cfg Config) *Scanner {
	if metrics == nil {
		metrics = NopRecorder{}
	}
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = DefaultConfig().MinContentLen
	}
	if cfg.IdentityPrefixLen <= 0 {
		cfg.IdentityPrefixLen = DefaultConfig().IdentityPrefixLen
	}
	return &Scanner{
		adapter:  adapter,
		registry: NewProcessedRegistry(),
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Registry はスキャナの処理済みレジストリを返す。
func (s *Scanner) Registry() *ProcessedRegistry {
	return s.registry
}

// Scan はドキュメント内の投稿候補を走査し、未処理の投稿へコントロールを注入する。
// ドキュメントは直接変更される（コントロール挿入・処理済み属性の付与）。
// 1投稿の失敗はログに記録された上で隔離され、兄弟投稿の処理を妨げない。
func (s *Scanner) Scan(doc *goquery.Document, pageURL string) *Report {
	report := &Report{}

	for _, sel := range s.adapter.DetectCandidates(doc) {
		report.Candidates++
		s.metrics.RecordPostDetected()

		if err := s.processCandidate(sel, pageURL, report); err != nil {
			report.Failed++
			s.metrics.RecordScanFailure()
			s.logger.Warn("投稿の処理に失敗しました",
				slog.String("page_url", pageURL),
				slog.String("error", err.Error()),
			)
		}
	}

	return report
}

// processCandidate は1候補要素の抽出・注入を行う。
// マークアップ起因のパニックはエラーに変換して隔離する。
func (s *Scanner) processCandidate(sel *goquery.Selection, pageURL string, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("予期しないマークアップ構造: %v", r)
		}
	}()

	// DOM属性マーカーによるスキップ（要素から直接復元できるground truth）
	if sel.AttrOr(page.ProcessedAttr, "") != "" {
		report.SkippedProcessed++
		s.metrics.RecordPostSkipped("processed")
		return nil
	}

	fields := s.adapter.ExtractFields(sel, pageURL)

	// 内容不足の投稿はスキップ（キャプションなしのリシェア・メディア投稿対策）
	if utf8.RuneCountInString(fields.Text) < s.cfg.MinContentLen {
		report.SkippedShort++
		s.metrics.RecordPostSkipped("short_content")
		return nil
	}

	identity := ComputeIdentity(fields.Link, fields.Text, s.cfg.IdentityPrefixLen)

	// インメモリ集合によるスキップ（要素のデタッチ・再アタッチに耐える高速パス）
	if s.registry.IsProcessed(identity) {
		// 再アタッチされた要素にはマーカーを復元する
		sel.SetAttr(page.ProcessedAttr, "true")
		report.SkippedProcessed++
		s.metrics.RecordPostSkipped("processed")
		return nil
	}

	if err := injectControl(s.adapter, sel, identity); err != nil {
		return fmt.Errorf("コントロールの注入に失敗: %w", err)
	}

	sel.SetAttr(page.ProcessedAttr, "true")
	s.registry.MarkProcessed(identity)
	s.metrics.RecordPostInjected()

	report.Posts = append(report.Posts, model.DetectedPost{
		Text: fields.Text,
		Link: fields.Link,
		Author: model.PostAuthor{
			Name:       fields.AuthorName,
			ProfileURL: fields.AuthorProfileURL,
		},
		Identity: identity,
	})

	return nil
}
