package service

// ============================================================================
// 价目表
// ============================================================================

// CommercialMultiplier 商用授权按个人价的 8 倍计费
const CommercialMultiplier = 8

// Cost 一次生成消耗的이용권数量：每 4 道题 1 张，商用 ×8
func Cost(problemCount int, commercial bool) int64 {
	cost := int64(problemCount / 4)
	if commercial {
		cost *= CommercialMultiplier
	}
	return cost
}

// creditPackages 充值套餐：支付金额（원）→ 到账이용권
var creditPackages = map[int64]int64{
	1000:  20,
	5000:  110,
	10000: 240,
	30000: 750,
}

// CreditsForAmount 按实付金额查到账数量
// 价目表外的金额返回 0——支付记录仍然要落库，只是不加이용권
func CreditsForAmount(amount int64) int64 {
	return creditPackages[amount]
}

// IsListedAmount 金额是否是在售套餐
func IsListedAmount(amount int64) bool {
	_, ok := creditPackages[amount]
	return ok
}
