// =============================================================================
// 文件: internal/congestion/seq.go
// 描述: 32 位序列号的回绕感知比较 (改编自 adapter.go 中的 seqLessThan/seqInRange)
// =============================================================================
package congestion

// seqLess 判断 a 在模 2^32 意义下是否严格先于 b。
func seqLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// seqLessEq 判断 a 在模 2^32 意义下是否先于或等于 b。
func seqLessEq(a, b uint32) bool {
	return a == b || seqLess(a, b)
}

// seqAfter 判断 a 在模 2^32 意义下是否严格晚于 b。
func seqAfter(a, b uint32) bool {
	return seqLess(b, a)
}

// seqDelta 返回从 from 到 to 的正向距离 (to - from)，按 uint32 回绕运算。
func seqDelta(from, to uint32) uint32 {
	return to - from
}
