package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はバックエンドから受け取ったテキストのサニタイズ機能。
type ContentSanitizerService interface {
	// Description は商品説明のHTMLを表示用に安全化する。
	Description(rawHTML string) string
	// PlainText はタグをすべて取り除いたプレーンテキストを返す。
	PlainText(raw string) string
}

// ContentSanitizer はbluemondayを使用したContentSanitizerServiceの実装。
// ポリシーは生成時に1回だけ構築し、以降は並行に使用できる。
type ContentSanitizer struct {
	description *bluemonday.Policy
	strict      *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
//
// 商品説明ポリシー: bluemondayのUGCポリシーを基に、URLはhttps（とmailto）のみ許可し、
// リンクには target="_blank" と rel="nofollow noopener noreferrer" を付与する。
// プレーンテキストポリシー: すべてのタグを除去する。
func NewContentSanitizer() *ContentSanitizer {
	desc := bluemonday.UGCPolicy()
	desc.AllowRelativeURLs(false)
	desc.RequireNoFollowOnLinks(true)
	desc.RequireNoReferrerOnLinks(true)
	desc.AddTargetBlankToFullyQualifiedLinks(true)
	// httpのリンク・画像は拒否し、https と mailto のみ残す
	desc.AllowURLSchemeWithCustomPolicy("http", func(*url.URL) bool { return false })

	return &ContentSanitizer{
		description: desc,
		strict:      bluemonday.StrictPolicy(),
	}
}

// Description は商品説明のHTMLを安全化する。
func (s *ContentSanitizer) Description(rawHTML string) string {
	return strings.TrimSpace(s.description.Sanitize(rawHTML))
}

// PlainText はタグを除去し、エンティティを戻したテキストを返す。
func (s *ContentSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// compile-time interface check
var _ ContentSanitizerService = (*ContentSanitizer)(nil)
