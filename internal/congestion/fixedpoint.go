// =============================================================================
// 文件: internal/congestion/fixedpoint.go
// 描述: Q32.32 定点数运算 (见 spec §4.4, §9 "Fixed-point math")
// =============================================================================
package congestion

import "math"

// fixedFracBits 是小数部分的位数。
const fixedFracBits = 32

// fixedScale 是 1.0 在定点表示下对应的整数值。
const fixedScale = int64(1) << fixedFracBits

// Fixed 是一个 64 位、32 位小数位的有符号定点数。
type Fixed int64

// FixedFromFloat 把一个 float64 转换为定点数。
func FixedFromFloat(f float64) Fixed {
	return Fixed(f * float64(fixedScale))
}

// FixedFromInt 把一个整数转换为定点数。
func FixedFromInt(i int64) Fixed {
	return Fixed(i * fixedScale)
}

// Float64 把定点数转换回 float64，仅用于日志/指标展示与跨越 exp/pow 的边界。
func (f Fixed) Float64() float64 {
	return float64(f) / float64(fixedScale)
}

// Add 返回 f+g。
func (f Fixed) Add(g Fixed) Fixed { return f + g }

// Sub 返回 f-g。
func (f Fixed) Sub(g Fixed) Fixed { return f - g }

// Mul 返回 f*g，按 Q32.32 规则缩放。中间结果经 float64 往返，避免在
// int64 上做 64x64 乘法时溢出；float64 只有 53 位有效精度，整数部分较大的
// 值 (例如以字节/秒计的速率) 在往返中会丢掉最低的若干小数位。
func (f Fixed) Mul(g Fixed) Fixed {
	return FixedFromFloat(f.Float64() * g.Float64())
}

// Div 返回 f/g；g 为 0 时返回 0 而不是 panic（度量值的 0 分母已在调用处被 §4.4 的 "+1" 规避）。
func (f Fixed) Div(g Fixed) Fixed {
	if g == 0 {
		return 0
	}
	return FixedFromFloat(f.Float64() / g.Float64())
}

// IsNegative 报告该值是否小于零。
func (f Fixed) IsNegative() bool { return f < 0 }

// sigmoidPenalty 实现 spec §4.4 的 sigmoid 丢包惩罚：
//
//	penalty(p) = 1 - 1/(1+exp(-100*(p-0.05)))
//
// p 是以定点表示的丢包率。exp 本身用浮点近似计算 —— spec §9 允许移植版本
// "reimplement the same fixed-point library" 或在宿主允许浮点时直接用 f64；
// 这里选择在定点值与浮点之间做一次往返，只在 exp 这一个超越函数上使用浮点。
func sigmoidPenalty(p Fixed) Fixed {
	pf := p.Float64()
	exponent := -100.0 * (pf - 0.05)
	denom := 1.0 + math.Exp(exponent)
	penalty := 1.0 - 1.0/denom
	return FixedFromFloat(penalty)
}
