package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"gopherex.com/xmatch/internal/gateway"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/common"
	"gopherex.com/xmatch/pkg/xerr"
)

const maxDepthLevels = 500

type Book struct {
	eng   Matcher
	last  gateway.LastTradeStore
	ticks intake.Ticks
}

func NewBook(eng Matcher, last gateway.LastTradeStore, ticks intake.Ticks) *Book {
	return &Book{eng: eng, last: last, ticks: ticks}
}

// Exists GET /api/v1/books/:symbol
func (h *Book) Exists(c *gin.Context) {
	ok, err := h.eng.HasBook(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		common.FailErr(c, codeErr(err))
		return
	}
	common.Success(c, gin.H{"exists": ok})
}

// List GET /api/v1/books
func (h *Book) List(c *gin.Context) {
	common.Success(c, gin.H{"symbols": h.eng.Symbols()})
}

type levelResp struct {
	Price  string `json:"price"`
	Qty    int64  `json:"qty"`
	Orders int    `json:"orders"`
}

type depthResp struct {
	Symbol string      `json:"symbol"`
	Bids   []levelResp `json:"bids"`
	Asks   []levelResp `json:"asks"`
}

func (h *Book) levels(in []matching.LevelView) []levelResp {
	out := make([]levelResp, 0, len(in))
	for _, lv := range in {
		out = append(out, levelResp{Price: h.ticks.Price(lv.Price), Qty: lv.Qty, Orders: lv.Orders})
	}
	return out
}

// Depth GET /api/v1/books/:symbol/depth?levels=N
func (h *Book) Depth(c *gin.Context) {
	n := 20
	if s := c.Query("levels"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxDepthLevels {
			common.FailErr(c, xerr.NewErrCode(xerr.RequestParamsError))
			return
		}
		n = v
	}
	d, err := h.eng.Depth(c.Request.Context(), c.Param("symbol"), n)
	if err != nil {
		common.FailErr(c, codeErr(err))
		return
	}
	common.Success(c, depthResp{Symbol: d.Symbol, Bids: h.levels(d.Bids), Asks: h.levels(d.Asks)})
}

type restingResp struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Price  string `json:"price"`
	Qty    int64  `json:"qty"`
	Seq    uint64 `json:"seq"`
}

// Order GET /api/v1/books/:symbol/orders/:id 查挂单
func (h *Book) Order(c *gin.Context) {
	o, ok, err := h.eng.Lookup(c.Request.Context(), c.Param("symbol"), c.Param("id"))
	if err != nil {
		common.FailErr(c, codeErr(err))
		return
	}
	if !ok {
		common.FailErr(c, xerr.NewErrCode(xerr.OrderNotFound))
		return
	}
	common.Success(c, restingResp{
		ID: o.ID, Symbol: o.Symbol, Side: o.Side.String(), Type: o.Type.String(),
		Price: h.ticks.Price(o.Price), Qty: o.Qty, Seq: o.Seq,
	})
}

// Last GET /api/v1/books/:symbol/last 最近一次成交
func (h *Book) Last(c *gin.Context) {
	if h.last == nil {
		common.FailErr(c, xerr.NewErrCode(xerr.NoTrade))
		return
	}
	lt, ok, err := h.last.Get(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		common.FailErr(c, xerr.Wrap(err, xerr.ServerCommonError, ""))
		return
	}
	if !ok {
		common.FailErr(c, xerr.NewErrCode(xerr.NoTrade))
		return
	}
	lt.AvgPrice = h.ticks.AvgPriceString(lt.AvgPrice)
	common.Success(c, lt)
}
