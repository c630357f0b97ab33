package redisx

const (
	// Блокировка периодической эскалации просроченных заказов: одна на кластер.
	KeyExpirySweepLock = "lock:orders:expiry-sweep"
)
