// Package cart はセッションごとのカート状態を管理する。
//
// カートは商品IDごとに1エントリを持ち、数量は常に1以上に保たれる。
// 更新のたびに新しいスライスを作り直すため、Itemsで取得したスナップショットは後続の更新の影響を受けない。
package cart

import (
	"log/slog"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/metrics"
)

// Item はカート内の1商品を表す。商品情報は追加時点のスナップショット。
type Item struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Quantity int             `json:"quantity"`
}

// Subtotal は単価×数量を返す。
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// カート操作の種別（メトリクスのラベル）
const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update"
	opClear  = "clear"
	opSettle = "settle"
)

// ValidID は商品IDとして受け付けられる値かを判定する。
func ValidID(id int64) bool {
	return id > 0
}

// ParseProductID はJSON数値として受け取った商品IDを検証して変換する。
// NaN・無限大・小数・0以下は受け付けない。
func ParseProductID(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v != math.Trunc(v) || v <= 0 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// Cart はカートの状態を保持する。
// ゲートウェイは同一セッションのリクエストを並行に処理し得るため、参照の差し替えをミューテックスで保護する。
type Cart struct {
	mu      sync.Mutex
	items   []Item
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// New は空のカートを生成する。
func New(logger *slog.Logger, m metrics.MetricsCollector) *Cart {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Cart{
		items:   []Item{},
		logger:  logger,
		metrics: m,
	}
}

// Add は商品をカートに追加する。
// 同じIDのエントリがあれば数量を加算し、なければ末尾に追加する。
// quantityが1未満の場合は既定値の1として扱う。IDが不正な場合は何もしない。
func (c *Cart) Add(item Item, quantity int) {
	if !ValidID(item.ID) {
		c.logger.Error("不正な商品IDのためカートに追加できません",
			slog.Int64("product_id", item.ID),
		)
		return
	}
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Item, 0, len(c.items)+1)
	found := false
	for _, it := range c.items {
		if it.ID == item.ID {
			it.Quantity += quantity
			found = true
		}
		next = append(next, it)
	}
	if !found {
		item.Quantity = quantity
		next = append(next, item)
	}

	c.items = next
	c.metrics.RecordCartMutation(opAdd)
}

// Remove は指定IDの商品をカートから削除する。IDが不正な場合は何もしない。
func (c *Cart) Remove(id int64) {
	if !ValidID(id) {
		c.logger.Error("不正な商品IDのためカートから削除できません",
			slog.Int64("product_id", id),
		)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(id)
	c.metrics.RecordCartMutation(opRemove)
}

// UpdateQuantity は指定IDの商品の数量を上書きする。
// quantityが0以下の場合は削除する。IDが不正な場合は何もしない。
func (c *Cart) UpdateQuantity(id int64, quantity int) {
	if !ValidID(id) {
		c.logger.Error("不正な商品IDのため数量を更新できません",
			slog.Int64("product_id", id),
			slog.Int("quantity", quantity),
		)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		c.removeLocked(id)
		c.metrics.RecordCartMutation(opRemove)
		return
	}

	next := make([]Item, len(c.items))
	for i, it := range c.items {
		if it.ID == id {
			it.Quantity = quantity
		}
		next[i] = it
	}

	c.items = next
	c.metrics.RecordCartMutation(opUpdate)
}

func (c *Cart) removeLocked(id int64) {
	next := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	c.items = next
}

// Settle は注文済みのスナップショット分の数量をカートから差し引く。
// 数量が0以下になったエントリは削除する。スナップショット取得後に追加された分は残る。
func (c *Cart) Settle(ordered []Item) {
	if len(ordered) == 0 {
		return
	}
	deduct := make(map[int64]int, len(ordered))
	for _, it := range ordered {
		deduct[it.ID] += it.Quantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		it.Quantity -= deduct[it.ID]
		if it.Quantity > 0 {
			next = append(next, it)
		}
	}

	c.items = next
	c.metrics.RecordCartMutation(opSettle)
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = []Item{}
	c.metrics.RecordCartMutation(opClear)
}

// Items はカートのスナップショットを返す。
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get は指定IDのエントリを返す。
func (c *Cart) Get(id int64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// TotalItems は全エントリの数量の合計を返す。
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// TotalPrice は単価×数量の合計を返す。
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// IsEmpty はカートが空かを返す。
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}
