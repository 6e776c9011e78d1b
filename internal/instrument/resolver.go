package instrument

import "math"

// DefaultSizeDecimals 为未收录币种的兜底下单精度。
// 下架或未知币种不报错，调用方需容忍不精确的舍入。
const DefaultSizeDecimals = 6

// Meta 描述单个合约的静态元数据。
type Meta struct {
	Symbol       string
	SizeDecimals int
}

// Resolver 基于交易所发布的合约列表解析下单数量精度。
type Resolver struct {
	universe map[string]int
}

// NewResolver 从合约元数据构造精度解析器。
func NewResolver(universe []Meta) *Resolver {
	index := make(map[string]int, len(universe))
	for _, meta := range universe {
		if meta.SizeDecimals < 0 {
			continue
		}
		index[meta.Symbol] = meta.SizeDecimals
	}
	return &Resolver{universe: index}
}

// Resolve 返回币种的数量小数位数，未收录时返回 DefaultSizeDecimals。
func (r *Resolver) Resolve(coin string) int {
	if decimals, ok := r.universe[coin]; ok {
		return decimals
	}
	return DefaultSizeDecimals
}

// RoundSize 将数量按币种精度四舍五入。
func (r *Resolver) RoundSize(coin string, size float64) float64 {
	decimals := r.Resolve(coin)
	factor := math.Pow10(decimals)
	return math.Round(size*factor) / factor
}
