package constants

const (
	OperatorOnline  = "online"
	OperatorOffline = "offline"

	RoleOperator = "operator"
)

type PromotionPolicy string

const (
	// PromotionNotify offers the oldest queued task to the freed operator,
	// who has to claim it explicitly.
	PromotionNotify PromotionPolicy = "notify"
	// PromotionAuto hands the oldest queued task to the freed operator directly.
	PromotionAuto PromotionPolicy = "auto"
)
