package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-comic-trans/pkg/domain"
	"github.com/shouni/go-comic-trans/pkg/pipeline"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理の結果として生成されたファイルの情報を保持します。
type PublishResult struct {
	ReportPath string // 生成された翻訳レポートのパス
}

// ComicPublisher は翻訳結果の成果物をレポートとして永続化します。
// 画像本体の保存は Runner 側の責務で、ここでは扱いません。
type ComicPublisher struct {
	writer remoteio.OutputWriter
}

// NewComicPublisher creates and returns a new instance of ComicPublisher with the specified writer.
func NewComicPublisher(writer remoteio.OutputWriter) *ComicPublisher {
	return &ComicPublisher{writer: writer}
}

// PublishPage はページ1枚分の翻訳レポートを Markdown として書き出します。
// pageName はレポート名の元になるページのファイル名（拡張子なし）です。
func (p *ComicPublisher) PublishPage(ctx context.Context, result *pipeline.PageResult, pageName string, opts Options) (*PublishResult, error) {
	reportPath, err := ResolveOutputPath(opts.OutputDir, pageName+"_report.md")
	if err != nil {
		return nil, fmt.Errorf("レポートパスの解決に失敗しました: %w", err)
	}

	content := BuildPageReport(result)
	if err := p.writer.Write(ctx, reportPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("翻訳レポートの書き込みに失敗しました: %w", err)
	}

	return &PublishResult{ReportPath: reportPath}, nil
}

// BuildPageReport はページの処理結果から Markdown レポート本文を組み立てます。
func BuildPageReport(result *pipeline.PageResult) string {
	overflowed := make(map[int]bool, len(result.Report.OverflowIDs))
	for _, id := range result.Report.OverflowIDs {
		overflowed[id] = true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# 翻訳レポート: ページ %d\n\n", result.PageNumber))
	sb.WriteString(fmt.Sprintf("- 吹き出し数: %d\n", len(result.Records)))
	sb.WriteString(fmt.Sprintf("- 描画: %d / はみ出し: %d / スキップ: %d\n\n",
		result.Report.Rendered, result.Report.Overflowed, result.Report.Skipped))

	if len(result.Records) == 0 {
		sb.WriteString("検出された吹き出しはありません。\n")
		return sb.String()
	}

	sb.WriteString("| ID | 状態 | 原文 | 訳文 |\n")
	sb.WriteString("|---:|:---|:---|:---|\n")
	for i := range result.Records {
		rec := &result.Records[i]
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			rec.Region.ID,
			recordStatus(rec, overflowed),
			escapeCell(rec.OriginalText),
			escapeCell(rec.TranslatedText),
		))
	}
	return sb.String()
}

// recordStatus は1レコードの処理結果を表すラベルを返します。
func recordStatus(rec *domain.BubbleRecord, overflowed map[int]bool) string {
	switch {
	case rec.OriginalText == domain.TextError:
		return "error"
	case rec.OriginalText == domain.TextEmpty:
		return "empty"
	case overflowed[rec.Region.ID]:
		return "overflow"
	default:
		return "ok"
	}
}

// escapeCell は Markdown テーブルのセルを壊す文字を無害化します。
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
