package envelope

import (
	"log/slog"

	"github.com/hitoshi/storefront/internal/metrics"
)

// maxLoggedBody はログに残すレスポンスボディの最大バイト数。
const maxLoggedBody = 256

// Normalizer はレスポンス形状の判定結果を既定値に落とし込む。
// 形状不一致はエラーにせず、警告ログとメトリクスに記録する。
type Normalizer struct {
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewNormalizer は新しいNormalizerを生成する。
func NewNormalizer(logger *slog.Logger, m metrics.MetricsCollector) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Normalizer{logger: logger, metrics: m}
}

// List は一覧レスポンスを正規化する。
// 戻り値はnilにならず、形状が不明な場合は空スライスを返す。
func List[T any](n *Normalizer, resource string, body []byte) []T {
	d := DecodeList[T](body)
	if !d.Ok() {
		n.mismatch(resource, "list", body)
		return []T{}
	}
	return d.Value
}

// One は単一リソースのレスポンスを正規化する。
// 形状が不明な場合はnilを返す。
func One[T any](n *Normalizer, resource string, body []byte) *T {
	d := DecodeOne[T](body)
	if !d.Ok() {
		n.mismatch(resource, "single", body)
		return nil
	}
	return &d.Value
}

func (n *Normalizer) mismatch(resource, kind string, body []byte) {
	n.metrics.RecordShapeMismatch(resource)

	excerpt := body
	if len(excerpt) > maxLoggedBody {
		excerpt = excerpt[:maxLoggedBody]
	}
	n.logger.Warn("想定外のレスポンス形状です",
		slog.String("resource", resource),
		slog.String("kind", kind),
		slog.String("body", string(excerpt)),
	)
}
